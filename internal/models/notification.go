package models

// Notification configures an outbound push notification for execution results.
// Triggers selects which execution statuses fire it.
type Notification struct {
	ID           int64          `json:"id,omitempty"`
	Name         string         `json:"name"`
	AppriseToken string         `json:"apprise_token"`
	Token        string         `json:"token"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Triggers     []ActionStatus `json:"triggers"`
}

// NotificationPatch is a partial update: only non-nil fields change.
type NotificationPatch struct {
	ID           int64           `json:"id"`
	Name         *string         `json:"name,omitempty"`
	AppriseToken *string         `json:"apprise_token,omitempty"`
	Token        *string         `json:"token,omitempty"`
	Title        *string         `json:"title,omitempty"`
	Body         *string         `json:"body,omitempty"`
	Triggers     *[]ActionStatus `json:"triggers,omitempty"`
}

// ApplyTo copies the provided fields of the patch onto the notification.
func (p NotificationPatch) ApplyTo(n *Notification) {
	if p.Name != nil {
		n.Name = *p.Name
	}
	if p.AppriseToken != nil {
		n.AppriseToken = *p.AppriseToken
	}
	if p.Token != nil {
		n.Token = *p.Token
	}
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Body != nil {
		n.Body = *p.Body
	}
	if p.Triggers != nil {
		n.Triggers = *p.Triggers
	}
}

// internal/domain/models/notificationtemplate.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LinkDescriptor is one clickable link embedded in a template's text as a
// "[placeholder](url)" directive.
type LinkDescriptor struct {
	URL         string `bson:"url" json:"url"`
	Placeholder string `bson:"placeholder" json:"placeholder"`
}

// NotificationTemplate is an admin-editable message sent when TriggerType fires.
// MessageText may contain link directives and {{variable}} placeholders; the
// latter are substituted by the delivery system, never here.
type NotificationTemplate struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	TriggerType string             `bson:"trigger_type" json:"trigger_type"`
	MessageText string             `bson:"message_text" json:"message_text"`
	Links       []LinkDescriptor   `bson:"links" json:"links"`
	IsActive    bool               `bson:"is_active" json:"is_active"`

	// Audit fields
	UpdatedAt     *time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	UpdatedByID   *primitive.ObjectID `bson:"updated_by_id,omitempty" json:"updated_by_id,omitempty"`
	UpdatedByName string              `bson:"updated_by_name,omitempty" json:"updated_by_name,omitempty"`
}

// Clone returns a copy of t that shares no slices with it.
func (t NotificationTemplate) Clone() NotificationTemplate {
	c := t
	if t.Links != nil {
		c.Links = append([]LinkDescriptor(nil), t.Links...)
	}
	return c
}

// Trigger types seeded at startup. The store accepts any non-empty trigger type.
const (
	TriggerUserCreated        = "user_created"
	TriggerUserDisabled       = "user_disabled"
	TriggerUserEnabled        = "user_enabled"
	TriggerInvitationAccepted = "invitation_accepted"
	TriggerPasswordReset      = "password_reset"
)

// AllTriggerTypes returns the trigger types known to this service.
func AllTriggerTypes() []string {
	return []string{
		TriggerUserCreated,
		TriggerUserDisabled,
		TriggerUserEnabled,
		TriggerInvitationAccepted,
		TriggerPasswordReset,
	}
}

// IsKnownTriggerType checks if a trigger type is one of AllTriggerTypes.
func IsKnownTriggerType(triggerType string) bool {
	for _, t := range AllTriggerTypes() {
		if t == triggerType {
			return true
		}
	}
	return false
}

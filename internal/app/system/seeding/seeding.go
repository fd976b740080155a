// internal/app/system/seeding/seeding.go
package seeding

import (
	"context"

	notificationtemplatestore "github.com/dalemusser/stratanotify/internal/app/store/notificationtemplates"
	"github.com/dalemusser/stratanotify/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// SeedAll seeds default data if not already present. It returns the trigger
// types that were seeded on this run.
func SeedAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) ([]string, error) {
	return seedTemplates(ctx, db, logger)
}

// DefaultTemplates returns the starting template for every known trigger.
// Defaults are inactive so nothing is sent until an operator reviews them.
func DefaultTemplates() []models.NotificationTemplate {
	return []models.NotificationTemplate{
		{
			TriggerType: models.TriggerUserCreated,
			MessageText: "Welcome {{username}}! Your account is ready.",
		},
		{
			TriggerType: models.TriggerUserDisabled,
			MessageText: "Hi {{username}}, your account has been disabled. Contact an administrator if you think this is a mistake.",
		},
		{
			TriggerType: models.TriggerUserEnabled,
			MessageText: "Hi {{username}}, your account has been re-enabled.",
		},
		{
			TriggerType: models.TriggerInvitationAccepted,
			MessageText: "{{username}} accepted your invitation.",
		},
		{
			TriggerType: models.TriggerPasswordReset,
			MessageText: "Hi {{username}}, use the link we sent to {{email}} to choose a new password.",
		},
	}
}

func seedTemplates(ctx context.Context, db *mongo.Database, logger *zap.Logger) ([]string, error) {
	store := notificationtemplatestore.New(db)

	var seeded []string
	for _, t := range DefaultTemplates() {
		created, err := store.CreateIfMissing(ctx, t)
		if err != nil {
			logger.Error("failed to seed template",
				zap.String("trigger_type", t.TriggerType),
				zap.Error(err))
			return seeded, err
		}
		if created {
			logger.Info("seeded default template", zap.String("trigger_type", t.TriggerType))
			seeded = append(seeded, t.TriggerType)
		}
	}

	if total, err := store.Count(ctx); err == nil {
		logger.Info("template seeding complete",
			zap.Int("seeded", len(seeded)),
			zap.Int64("stored", total))
	}
	return seeded, nil
}

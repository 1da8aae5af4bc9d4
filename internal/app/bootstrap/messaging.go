package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/studio-booking-platform/internal/config"
	"github.com/wolfman30/studio-booking-platform/internal/notify"
	"github.com/wolfman30/studio-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

// NotifierDeps are the runtime clients the notification channels may use.
type NotifierDeps struct {
	Redis       *redis.Client
	SES         *sesv2.Client
	Transcripts notify.TranscriptSource
	Metrics     *metrics.BookingMetrics
	Logger      *logging.Logger
}

// BuildAlertStore returns the Redis-backed alert feed, or an in-process one
// when Redis is unavailable.
func BuildAlertStore(cfg *appconfig.Config, rdb *redis.Client) notify.AlertStore {
	if rdb != nil {
		return notify.NewRedisAlertStore(rdb, cfg.AlertHistorySize)
	}
	return notify.NewMemoryAlertStore(cfg.AlertHistorySize)
}

// BuildEmailSender selects the outbound email provider. It returns nil when
// the chosen provider is not configured.
func BuildEmailSender(cfg *appconfig.Config, ses *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			return s
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; email disabled")
	case "ses":
		if s := notify.NewSESSender(ses, notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			return s
		}
		logger.Warn("ses selected but no client is available; email disabled")
	case "stub", "":
		return notify.NewStubEmailSender(logger)
	default:
		logger.Warn("unknown EMAIL_PROVIDER; email disabled", "provider", cfg.EmailProvider)
	}
	return nil
}

// BuildDispatcher assembles the booking notification fan-out. Channels whose
// configuration is missing are left out.
func BuildDispatcher(cfg *appconfig.Config, alerts notify.AlertStore, deps NotifierDeps) *notify.Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	var channels []notify.Channel
	if ch := notify.NewAdminAlertChannel(alerts); ch != nil {
		channels = append(channels, ch)
	}
	if ch := notify.NewWhatsAppChannel(cfg.WhatsAppAdminNumber, cfg.WhatsAppContextTurns, deps.Transcripts, alerts); ch != nil {
		channels = append(channels, ch)
	}
	if sender := BuildEmailSender(cfg, deps.SES, logger); sender != nil {
		if ch := notify.NewEmailChannel(sender, cfg.AdminEmailRecipients); ch != nil {
			channels = append(channels, ch)
		}
	}

	d := notify.NewDispatcher(logger, deps.Metrics, cfg.NotifyTimeout, channels...)
	logger.Info("notification channels configured", "channels", d.Channels())
	return d
}

package config

import (
	"os"
	"strings"
)

type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// GetSMTPSettings reads the outbound mail settings used by the notification dispatcher.
func GetSMTPSettings() SMTPSettings {
	from := strings.TrimSpace(os.Getenv("SMTP_FROM"))
	if from == "" {
		from = "no-reply@localhost"
	}
	return SMTPSettings{
		Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
		Port:     intFromEnv("SMTP_PORT", 587),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     from,
	}
}

// NotifyTransport selects the notifier: log (default), smtp or pubsub.
func NotifyTransport() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFY_TRANSPORT")))
	if v == "" {
		return "log"
	}
	return v
}

func NotifyMaxAttempts() int {
	return intFromEnv("NOTIFY_MAX_ATTEMPTS", 20)
}

func NotifyPollMillis() int {
	return intFromEnv("NOTIFY_POLL_MS", 500)
}

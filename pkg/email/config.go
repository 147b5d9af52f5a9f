package email

// Config holds email service configuration.
// Postmark tokens are only required when Driver is "postmark"; the "dev" driver
// writes messages to DevDir instead of sending them.
type Config struct {
	Driver               string `env:"EMAIL_DRIVER" envDefault:"dev"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:".emails"`
}

const (
	DriverPostmark = "postmark"
	DriverDev      = "dev"
)

package worker

import (
	"github.com/spec-kit/auth-service/internal/service"
)

// StartMailerWorker registers the mail-producing event handlers.
func StartMailerWorker(mailerService *service.MailerService) {
	if mailerService == nil {
		return
	}
	mailerService.RegisterHandlers()
}

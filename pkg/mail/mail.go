package mail

import (
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/pkg/logger"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type Message struct {
	ToName      string
	ToAddress   string
	Subject     string
	TextContent string
}

// Sender 异步发送邮件，失败只记录日志
type Sender interface {
	Send(msg Message)
}

// NewSender 配置了 SendGrid API Key 时使用 SendGrid，否则输出到日志
func NewSender(cfg config.MailConfig) Sender {
	if cfg.SendgridAPIKey == "" {
		return &ConsoleSender{}
	}
	return &SendgridSender{
		key:        cfg.SendgridAPIKey,
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		subjPrefix: "[" + cfg.AppName + "] ",
	}
}

type SendgridSender struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

func (s *SendgridSender) Send(msg Message) {
	go s.send(msg)
}

func (s *SendgridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToAddress))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	return m
}

func (s *SendgridSender) send(msg Message) {
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		logger.Log.Error("sending email", zap.String("to", msg.ToAddress), zap.Error(err))
	} else if res.StatusCode >= http.StatusBadRequest {
		logger.Log.Error(fmt.Sprintf("sending email - status: %d", res.StatusCode), zap.String("body", res.Body))
	}
}

type ConsoleSender struct{}

func (ConsoleSender) Send(msg Message) {
	logger.Log.Info("email",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.TextContent),
	)
}

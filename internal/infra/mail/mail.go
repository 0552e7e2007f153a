// Package mail wraps one authenticated SMTP session per run on top of gomail.
package mail

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	"regulatory_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

var (
	ErrNoRecipients  = errors.New("message has no recipients")
	ErrSessionClosed = errors.New("mail session is closed")
)

// Config describes the submission endpoint and the sender identity.
type Config struct {
	Host               string
	Port               int // 465 selects implicit TLS
	Username           string
	SenderAddress      string
	SenderName         string
	InsecureSkipVerify bool
}

// Dialer opens sessions against the configured endpoint.
type Dialer struct {
	cfg    Config
	logger *logrus.Entry
}

func NewDialer(cfg Config, logger *logrus.Entry) *Dialer {
	if cfg.Username == "" {
		cfg.Username = cfg.SenderAddress
	}
	return &Dialer{cfg: cfg, logger: logger.WithField("component", "mail")}
}

// Dial connects and authenticates with password. A failure here is fatal to the run
// and is returned as a *notification.TransportError at the login stage.
func (d *Dialer) Dial(password string) (notification.MailSession, error) {
	gd := gomail.NewDialer(d.cfg.Host, d.cfg.Port, d.cfg.Username, password)
	if d.cfg.InsecureSkipVerify {
		gd.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	d.logger.WithFields(logrus.Fields{
		"host": d.cfg.Host,
		"port": d.cfg.Port,
		"user": d.cfg.Username,
		"ssl":  gd.SSL,
	}).Info("Opening SMTP session")

	sc, err := gd.Dial()
	if err != nil {
		d.logger.WithError(err).Error("SMTP login failed")
		return nil, &notification.TransportError{Stage: notification.StageLogin, Err: err}
	}
	d.logger.Info("SMTP login successful")
	return &Session{dial: gd.Dial, sender: sc, from: d.cfg.SenderAddress, name: d.cfg.SenderName, logger: d.logger}, nil
}

// Session sends messages over one authenticated connection until Close.
// gomail leaves the SMTP transaction open when a recipient is rejected, so
// after a failed send the connection is dropped and the next Send dials again.
type Session struct {
	dial   func() (gomail.SendCloser, error)
	sender gomail.SendCloser // nil between a failed send and the next dial
	from   string
	name   string
	logger *logrus.Entry

	closeOnce sync.Once
	closed    bool
	closeErr  error
}

// Send delivers msg. Failures, including a failed reconnect, are
// *notification.TransportError at the send stage and only affect msg.
func (s *Session) Send(msg notification.Message) error {
	if msg.To.Len() == 0 {
		return &notification.TransportError{Stage: notification.StageSend, Err: ErrNoRecipients}
	}
	if s.closed {
		return &notification.TransportError{Stage: notification.StageSend, Err: ErrSessionClosed}
	}
	if s.sender == nil {
		sc, err := s.dial()
		if err != nil {
			return &notification.TransportError{Stage: notification.StageSend, Err: fmt.Errorf("reconnecting: %w", err)}
		}
		s.logger.Info("SMTP session reopened")
		s.sender = sc
	}
	m := s.build(msg)
	if err := gomail.Send(s.sender, m); err != nil {
		s.drop()
		return &notification.TransportError{Stage: notification.StageSend, Err: err}
	}
	s.logger.WithFields(logrus.Fields{
		"recipients": msg.To.Len(),
		"subject":    msg.Subject,
	}).Debug("Message delivered")
	return nil
}

func (s *Session) build(msg notification.Message) *gomail.Message {
	m := gomail.NewMessage()
	from := msg.From
	if from == "" {
		from = s.from
	}
	if s.name != "" {
		m.SetAddressHeader("From", from, s.name)
	} else {
		m.SetHeader("From", from)
	}
	m.SetHeader("To", msg.To.Slice()...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m
}

// drop discards a connection whose SMTP state is unknown.
func (s *Session) drop() {
	if err := s.sender.Close(); err != nil {
		s.logger.WithError(err).Debug("Closing failed SMTP connection")
	}
	s.sender = nil
}

// Close quits the SMTP session. Calling it more than once is safe.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		if s.sender != nil {
			s.closeErr = s.sender.Close()
			s.sender = nil
		}
		s.logger.Info("SMTP session closed")
	})
	return s.closeErr
}

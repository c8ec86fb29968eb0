package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Confirmation is sent to a patient after a successful booking.
type Confirmation struct {
	PatientName      string
	PatientEmail     string
	PractitionerName string
	Start            time.Time
	DurationMinutes  int
}

// Notifier is the booking side of patient messaging.
type Notifier interface {
	BookingConfirmed(ctx context.Context, c Confirmation) error
}

type EmailNotifier struct {
	sender     EmailSender
	clinicName string
}

func NewEmailNotifier(sender EmailSender, clinicName string) *EmailNotifier {
	return &EmailNotifier{sender: sender, clinicName: clinicName}
}

func (n *EmailNotifier) BookingConfirmed(ctx context.Context, c Confirmation) error {
	if strings.TrimSpace(c.PatientEmail) == "" {
		return nil
	}
	return n.sender.Send(ctx, EmailMessage{
		To:      c.PatientEmail,
		ToName:  c.PatientName,
		Subject: fmt.Sprintf("Your appointment at %s", n.clinicName),
		Body:    confirmationBody(n.clinicName, c),
	})
}

func confirmationBody(clinic string, c Confirmation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", c.PatientName)
	fmt.Fprintf(&b, "Your appointment at %s is booked for %s (%d minutes)",
		clinic, c.Start.Format("Monday 2 January 2006 at 15:04"), c.DurationMinutes)
	if c.PractitionerName != "" {
		fmt.Fprintf(&b, " with %s", c.PractitionerName)
	}
	b.WriteString(".\n\nPlease arrive a few minutes early to check in.\n")
	return b.String()
}

package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"

	"healthsync/internal/triage"
)

// DefaultFontPaths covers the common DejaVu locations on Debian and Alpine.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

var ErrNoFont = errors.New("no usable TTF font for PDF report")

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	fontPaths    []string
	log          *zap.Logger
	now          func() time.Time
}

func NewService(tg TelegramClient, doctorChatID int64, log *zap.Logger, fontPaths ...string) *Service {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		fontPaths:    fontPaths,
		log:          log,
		now:          time.Now,
	}
}

// AlertEmergency tells the clinician chat about an escalated session and
// attaches the PDF summary when one can be rendered.
func (s *Service) AlertEmergency(ctx context.Context, sess triage.SymptomSession) error {
	if s.doctorChatID == 0 {
		s.log.Warn("doctor chat is not configured, skipping emergency alert",
			zap.String("session_id", sess.ID.String()))
		return nil
	}
	if err := s.tgClient.SendMessage(ctx, s.doctorChatID, alertText(sess)); err != nil {
		return fmt.Errorf("send emergency alert: %w", err)
	}

	pdf, err := s.RenderTriage(&triage.Turn{Session: sess, Done: true, Emergency: true, Message: sess.EmergencyMessage})
	if err != nil {
		s.log.Warn("emergency report not attached", zap.String("session_id", sess.ID.String()), zap.Error(err))
		return nil
	}
	fileName := fmt.Sprintf("triage_%s.pdf", sess.ID)
	if err := s.tgClient.SendDocument(ctx, s.doctorChatID, pdf, fileName); err != nil {
		return fmt.Errorf("send emergency report: %w", err)
	}
	s.log.Info("emergency alert delivered", zap.String("session_id", sess.ID.String()))
	return nil
}

func alertText(sess triage.SymptomSession) string {
	var b strings.Builder
	b.WriteString("EMERGENCY triage session\n")
	fmt.Fprintf(&b, "Session: %s\n", sess.ID)
	fmt.Fprintf(&b, "Complaint: %s\n", sess.InitialSymptom)
	if p := patientLine(sess); p != "" {
		fmt.Fprintf(&b, "Patient: %s\n", p)
	}
	if sess.EmergencyMessage != "" {
		fmt.Fprintf(&b, "Reason: %s\n", sess.EmergencyMessage)
	}
	return b.String()
}

func patientLine(sess triage.SymptomSession) string {
	var parts []string
	if sess.Age != nil {
		parts = append(parts, fmt.Sprintf("%d y/o", *sess.Age))
	}
	if sess.Gender != "" {
		parts = append(parts, sess.Gender)
	}
	if sess.State != "" {
		parts = append(parts, sess.State)
	}
	return strings.Join(parts, ", ")
}

// RenderTriage produces the PDF for a session: summary, answers and the
// current condition ranking.
func (s *Service) RenderTriage(turn *triage.Turn) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := s.loadFont(&pdf); err != nil {
		return nil, err
	}

	w := &writer{pdf: &pdf}
	sess := turn.Session

	w.heading(20, "HealthSync Triage Report")
	w.br(30)

	w.font(12)
	w.line(fmt.Sprintf("Date: %s", s.now().Format("02.01.2006 15:04")))
	w.line(fmt.Sprintf("Session: %s", sess.ID))
	w.line(fmt.Sprintf("Complaint: %s", sess.InitialSymptom))
	if p := patientLine(sess); p != "" {
		w.line(fmt.Sprintf("Patient: %s", p))
	}
	w.line(fmt.Sprintf("Status: %s (step %d)", sess.Status, sess.CurrentStep))
	if sess.EmergencyMessage != "" {
		w.line(fmt.Sprintf("Emergency: %s", sess.EmergencyMessage))
	}
	w.br(15)

	w.heading(14, "Answers:")
	w.br(15)
	w.font(11)
	if len(turn.Answers) == 0 {
		w.line("- No answers recorded.")
	}
	for _, a := range turn.Answers {
		w.wrapped(fmt.Sprintf("- %s: %s", a.Question.Text, a.AnswerValue))
	}
	w.br(15)

	w.heading(14, "Condition ranking:")
	w.br(15)
	w.font(11)
	if len(turn.Ranking) == 0 {
		w.line("- No ranking available.")
	}
	for _, r := range turn.Ranking {
		line := fmt.Sprintf("- %s: %.0f%% (%s)", r.Condition.Name, r.Confidence*100, r.Condition.UrgencyLevel)
		if r.Condition.Specialization != "" {
			line += " - " + r.Condition.Specialization
		}
		w.wrapped(line)
	}

	pdf.SetY(780)
	w.font(9)
	pdf.Cell(nil, "This report supports, and does not replace, a clinical assessment.")

	if w.err != nil {
		return nil, w.err
	}
	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range s.fontPaths {
		err := pdf.AddTTFFont("DejaVu", path)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrNoFont, lastErr)
}

// writer keeps the first gopdf error so the layout code stays linear.
type writer struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *writer) font(size float64) {
	if w.err == nil {
		w.err = w.pdf.SetFont("DejaVu", "", size)
	}
}

func (w *writer) heading(size float64, text string) {
	w.font(size)
	if w.err == nil {
		w.err = w.pdf.Cell(nil, text)
	}
}

// pageBottom leaves room for the footer.
const pageBottom = 760

func (w *writer) breakPage() {
	if w.pdf.GetY() > pageBottom {
		w.pdf.AddPage()
	}
}

func (w *writer) line(text string) {
	w.breakPage()
	if w.err == nil {
		w.err = w.pdf.Cell(nil, text)
	}
	w.pdf.Br(15)
}

func (w *writer) wrapped(text string) {
	if w.err != nil {
		return
	}
	lines, err := w.pdf.SplitText(text, 500)
	if err != nil {
		w.err = err
		return
	}
	for _, l := range lines {
		w.breakPage()
		if w.err = w.pdf.Cell(nil, l); w.err != nil {
			return
		}
		w.pdf.Br(12)
	}
	w.pdf.Br(5)
}

func (w *writer) br(h float64) { w.pdf.Br(h) }

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"code.sajari.com/docconv"
)

// ResumeSchema names the embedded resume analysis schema.
const ResumeSchema = "resume_analysis"

// MaxResumeSize is the largest accepted resume upload.
const MaxResumeSize = 10 << 20

var (
	// ErrInvalidObject reports model output that does not match its schema.
	ErrInvalidObject = errors.New("invalid object")
	// ErrUnsupportedType reports a resume in a format that cannot be read.
	ErrUnsupportedType = errors.New("unsupported resume type")
	// ErrEmptyOutput reports a generation that finished without any text.
	ErrEmptyOutput = errors.New("model returned no text")
)

// FeedbackType classifies a resume feedback item.
type FeedbackType string

const (
	FeedbackStrength         FeedbackType = "strength"
	FeedbackMinorImprovement FeedbackType = "minor-improvement"
	FeedbackMajorImprovement FeedbackType = "major-improvement"
)

func ParseFeedbackType(s string) (FeedbackType, error) {
	t := FeedbackType(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid feedback type %q", s)
	}
	return t, nil
}

func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackStrength, FeedbackMinorImprovement, FeedbackMajorImprovement:
		return true
	}
	return false
}

func (t FeedbackType) Label() string {
	switch t {
	case FeedbackStrength:
		return "Strength"
	case FeedbackMinorImprovement:
		return "Minor Improvement"
	case FeedbackMajorImprovement:
		return "Major Improvement"
	}
	return string(t)
}

type FeedbackItem struct {
	Type    FeedbackType `json:"type"`
	Name    string       `json:"name"`
	Message string       `json:"message"`
}

type Category struct {
	Score    float64        `json:"score"`
	Summary  string         `json:"summary"`
	Feedback []FeedbackItem `json:"feedback"`
}

type ResumeAnalysis struct {
	OverallScore         float64  `json:"overallScore"`
	ATS                  Category `json:"ats"`
	JobMatch             Category `json:"jobMatch"`
	WritingAndFormatting Category `json:"writingAndFormatting"`
	KeywordCoverage      Category `json:"keywordCoverage"`
	Other                Category `json:"other"`
}

// ParseResumeAnalysis extracts the JSON object from model output, validates
// it against the resume schema and decodes it.
func ParseResumeAnalysis(ctx context.Context, l *Loader, raw string) (*ResumeAnalysis, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidObject)
	}

	j := extractJSON(raw)
	if j == "" {
		return nil, fmt.Errorf("%w: no JSON object found in response", ErrInvalidObject)
	}

	if err := l.Validate(ctx, ResumeSchema, []byte(j)); err != nil {
		return nil, err
	}

	var r ResumeAnalysis
	if err := json.Unmarshal([]byte(j), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidObject, err)
	}
	return &r, nil
}

// extractJSON returns the substring from the first '{' to the last '}' in the input.
// Models sometimes wrap JSON in prose or markdown fences.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}

// Resume MIME types accepted for analysis.
const (
	MimePDF  = "application/pdf"
	MimeDOC  = "application/msword"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText = "text/plain"
)

// SupportedResumeType reports whether mimeType can be analysed. Parameters
// such as charset are ignored.
func SupportedResumeType(mimeType string) bool {
	switch baseMime(mimeType) {
	case MimePDF, MimeDOC, MimeDOCX, MimeText:
		return true
	}
	return false
}

func baseMime(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}

// ExtractResumeText returns the plain text of a resume. Plain text is read
// as is, office and PDF documents go through docconv.
func ExtractResumeText(r io.Reader, mimeType string) (string, error) {
	mt := baseMime(mimeType)
	if !SupportedResumeType(mt) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxResumeSize+1))
	if err != nil {
		return "", fmt.Errorf("read resume: %w", err)
	}
	if len(data) > MaxResumeSize {
		return "", fmt.Errorf("resume exceeds %d bytes", MaxResumeSize)
	}

	if mt == MimeText {
		return strings.TrimSpace(string(data)), nil
	}

	res, err := docconv.Convert(bytes.NewReader(data), mt, false)
	if err != nil {
		return "", fmt.Errorf("convert resume: %w", err)
	}
	return strings.TrimSpace(res.Body), nil
}

package trace

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"encoding/json"
	"fmt"
	"io"
)

// ExportJSON marshals j to indented JSON, satisfying spec.md §6's
// "Job and step traces are exportable as JSON" requirement.
func (j *JobTrace) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(j, "", "  ")
}

// ContextDocument is the `context.json` artifact shape from spec.md §6.
type ContextDocument struct {
	JobID           string                   `json:"job_id"`
	CreatedAt       string                   `json:"created_at"`
	FinalState      string                   `json:"final_state"`
	Success         bool                     `json:"success"`
	Context         map[string]interface{}   `json:"context"`
	Errors          []map[string]interface{} `json:"errors"`
	TimelineSummary []string                 `json:"timeline_summary"`
}

// Screenshot is one base64-decoded screenshot to embed in the archive.
// Name is used as the entry name as given; an empty Name becomes
// `screenshot_<index>.png`.
type Screenshot struct {
	Name string
	PNG  []byte
}

// timelineLine formats one state-transition entry as a
// `[ISO-timestamp] ✓|✗ STATE` timeline.log line; no duration is included.
func timelineLine(t StateTransition, ok bool) string {
	mark := "✓"
	if !ok {
		mark = "✗"
	}
	return fmt.Sprintf("[%s] %s %s", t.At.Format("2006-01-02T15:04:05.000Z07:00"), mark, t.To)
}

// WriteArchive builds the trace.zip artifact described in spec.md §6: a
// deflate archive containing timeline.log, context.json, errors.log, and
// any screenshots the caller collected during the job.
func (j *JobTrace) WriteArchive(w io.Writer, screenshots []Screenshot) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	if err := writeZipEntry(zw, "timeline.log", j.timelineBytes()); err != nil {
		return err
	}

	ctxDoc := j.contextDocument()
	ctxJSON, err := json.MarshalIndent(ctxDoc, "", "  ")
	if err != nil {
		return fmt.Errorf("trace: marshal context.json: %w", err)
	}
	if err := writeZipEntry(zw, "context.json", ctxJSON); err != nil {
		return err
	}

	if err := writeZipEntry(zw, "errors.log", j.errorsBytes()); err != nil {
		return err
	}

	for i, s := range screenshots {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("screenshot_%d.png", i)
		}
		if err := writeZipEntry(zw, name, s.PNG); err != nil {
			return err
		}
	}

	return zw.Close()
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("trace: create %s: %w", name, err)
	}
	_, err = f.Write(data)
	return err
}

func (j *JobTrace) timelineBytes() []byte {
	var buf bytes.Buffer
	for _, t := range j.Transitions {
		fmt.Fprintln(&buf, timelineLine(t, true))
	}
	return buf.Bytes()
}

func (j *JobTrace) errorsBytes() []byte {
	var buf bytes.Buffer
	for _, s := range j.Steps {
		if s.Success {
			continue
		}
		fmt.Fprintf(&buf, "step=%s code=%s message=%s\n", s.Name, s.Reason.Code, s.Reason.Message)
	}
	if !j.Success {
		fmt.Fprintf(&buf, "terminal code=%s message=%s\n", j.Terminal.Code, j.Terminal.Message)
	}
	return buf.Bytes()
}

func (j *JobTrace) contextDocument() ContextDocument {
	final := "unknown"
	if len(j.Transitions) > 0 {
		final = j.Transitions[len(j.Transitions)-1].To
	}
	var errs []map[string]interface{}
	for _, s := range j.Steps {
		if s.Success {
			continue
		}
		errs = append(errs, map[string]interface{}{
			"step": s.Name, "code": s.Reason.Code, "message": s.Reason.Message,
		})
	}
	var summary []string
	for _, t := range j.Transitions {
		summary = append(summary, timelineLine(t, true))
	}
	return ContextDocument{
		JobID:           j.JobID,
		CreatedAt:       j.Start.Format("2006-01-02T15:04:05.000Z07:00"),
		FinalState:      final,
		Success:         j.Success,
		Context:         j.Terminal.Context,
		Errors:          errs,
		TimelineSummary: summary,
	}
}

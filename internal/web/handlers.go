package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/raine/ai-design-team/internal/analysis"
	"github.com/raine/ai-design-team/internal/llm"
	"github.com/raine/ai-design-team/internal/preview"
	"github.com/raine/ai-design-team/internal/session"
	"github.com/rs/zerolog/log"
)

const (
	noKeyWarning     = "Please enter your Google API key to begin."
	noDesignsError   = "Please upload at least one design file to analyze."
	runningError     = "An analysis is already running for this session."
	emptyKeyWarning  = "The API key cannot be empty."
	acceptedFileExts = ".jpg,.jpeg,.png,.webp"
)

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

type choice struct {
	Value   string
	Checked bool
}

type agentView struct {
	Name     string
	Status   analysis.AgentStatus
	Progress int
}

type pageData struct {
	Title       string
	RequestPath string
	HasKey      bool
	OperatorKey bool // The key in use is the operator default
	Model       string
	Warning     string
	Error       string
	Notices     []string
	Lottie      json.RawMessage // Marshaled with HTML escaping inside <script>
	Accept      string
	Categories  []choice
	FocusAreas  []choice
	Context     string
	Agents      []agentView
	Designs     *previewGridView
	Competitors *previewGridView
	Report      *reportView
}

func (s *Server) newPage(ctx context.Context, state *session.State) *pageData {
	sel := state.Selection()
	data := &pageData{
		Title:       "AI Design Team",
		HasKey:      s.apiKeyFor(state) != "",
		OperatorKey: state.APIKey() == "" && s.opts.DefaultAPIKey != "",
		Model:       s.opts.Model,
		Accept:      acceptedFileExts,
		Categories:  choices(analysis.AllCategories, sel.Categories),
		FocusAreas:  choices(analysis.AllFocusAreas, sel.FocusAreas),
		Context:     sel.Context,
		Agents:      agentViews(state.Agents),
	}
	if !data.HasKey {
		data.Warning = noKeyWarning
		if s.opts.Lottie != nil {
			data.Lottie = s.opts.Lottie.Load(ctx)
		}
	}
	return data
}

func choices[T ~string](all, selected []T) []choice {
	picked := make(map[T]bool, len(selected))
	for _, v := range selected {
		picked[v] = true
	}
	out := make([]choice, len(all))
	for i, v := range all {
		out[i] = choice{Value: string(v), Checked: picked[v]}
	}
	return out
}

func agentViews(t *analysis.Tracker) []agentView {
	snap := t.Snapshot()
	out := make([]agentView, 0, len(analysis.AllCategories))
	for _, c := range analysis.AllCategories {
		st := snap[c.AgentKey()]
		out = append(out, agentView{Name: c.AgentKey(), Status: st.Status, Progress: st.Progress})
	}
	return out
}

// GET /
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	state := s.sessionFor(w, r)
	data := s.newPage(r.Context(), state)
	if report := state.LastReport(); report != nil && data.HasKey {
		data.Report = newReportView(report)
	}
	s.render(w, r, http.StatusOK, data)
}

// POST /key
func (s *Server) handleSetKey(w http.ResponseWriter, r *http.Request) {
	state := s.sessionFor(w, r)
	key := strings.TrimSpace(r.PostFormValue("api_key"))
	if key == "" {
		data := s.newPage(r.Context(), state)
		data.Warning = emptyKeyWarning
		s.render(w, r, http.StatusBadRequest, data)
		return
	}

	state.SetAPIKey(key)
	if err := s.rememberKey(w, r, key); err != nil {
		log.Warn().Err(err).Msg("failed to seal api key cookie")
	}
	log.Info().Str("sessionId", state.ID).Msg("api key set for session")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// POST /key/clear
func (s *Server) handleClearKey(w http.ResponseWriter, r *http.Request) {
	state := s.sessionFor(w, r)
	state.SetAPIKey("")
	state.SetLastReport(nil)
	forgetKey(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// POST /analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	state := s.sessionFor(w, r)

	key := s.apiKeyFor(state)
	if key == "" {
		s.render(w, r, http.StatusBadRequest, s.newPage(r.Context(), state))
		return
	}

	form, err := s.parseUpload(w, r)
	if err != nil {
		data := s.newPage(r.Context(), state)
		status := http.StatusBadRequest
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			status = http.StatusRequestEntityTooLarge
			data.Error = fmt.Sprintf("Upload exceeds the %d MB limit.", s.opts.MaxUploadBytes>>20)
		} else {
			data.Error = fmt.Sprintf("Could not read upload: %v", err)
		}
		s.render(w, r, status, data)
		return
	}
	defer form.RemoveAll()

	sel := session.Selection{
		Categories: analysis.ParseCategories(form.Value["categories"]),
		FocusAreas: analysis.ParseFocusAreas(form.Value["focus"]),
		Context:    strings.TrimSpace(firstValue(form.Value["context"])),
	}
	state.SetSelection(sel)

	designs, notices := readUploads(form.File["designs"])
	competitors, more := readUploads(form.File["competitors"])
	notices = append(notices, more...)

	data := s.newPage(r.Context(), state)
	data.Notices = notices

	if len(designs) == 0 {
		data.Error = noDesignsError
		s.render(w, r, http.StatusBadRequest, data)
		return
	}

	if !state.TryBeginRun() {
		data.Error = runningError
		s.render(w, r, http.StatusConflict, data)
		return
	}
	defer state.EndRun()

	data.Designs = newPreviewGrid("Design", preview.PreviewAll(r.Context(), previewFiles(designs), preview.Options{}))
	data.Competitors = newPreviewGrid("Competitor", preview.PreviewAll(r.Context(), previewFiles(competitors), preview.Options{}))

	gen, err := s.opts.NewGenerator(r.Context(), key)
	if err != nil {
		log.Error().Err(err).Msg("failed to create model client")
		data.Error = fmt.Sprintf("Could not initialize the model: %v", err)
		s.render(w, r, http.StatusBadGateway, data)
		return
	}

	req := analysis.Request{
		Designs:     designs,
		Competitors: competitors,
		Categories:  sel.Categories,
		FocusAreas:  sel.FocusAreas,
		Context:     sel.Context,
	}
	report, err := analysis.NewService(gen).Run(r.Context(), req, state.Agents, func(c analysis.Category, st analysis.AgentState) {
		log.Debug().Str("sessionId", state.ID).Str("agent", c.AgentKey()).Str("status", string(st.Status)).Msg("agent progress")
	})
	if err != nil {
		log.Error().Err(err).Str("sessionId", state.ID).Msg("analysis failed")
		data.Error = fmt.Sprintf("Analysis failed: %v", err)
		s.render(w, r, http.StatusInternalServerError, data)
		return
	}

	state.SetLastReport(report)
	data.Agents = agentViews(state.Agents)
	data.Report = newReportView(report)
	s.render(w, r, http.StatusOK, data)
}

type previewResponse struct {
	Designs     *previewGridView `json:"designs"`
	Competitors *previewGridView `json:"competitors"`
	Notices     []string         `json:"notices"`
}

// POST /preview
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) error {
	form, err := s.parseUpload(w, r)
	if err != nil {
		return withStatus(http.StatusBadRequest, err)
	}
	defer form.RemoveAll()

	designs, notices := readUploads(form.File["designs"])
	competitors, more := readUploads(form.File["competitors"])

	writeJSON(w, http.StatusOK, previewResponse{
		Designs:     newPreviewGrid("Design", preview.PreviewAll(r.Context(), previewFiles(designs), preview.Options{})),
		Competitors: newPreviewGrid("Competitor", preview.PreviewAll(r.Context(), previewFiles(competitors), preview.Options{})),
		Notices:     append(notices, more...),
	})
	return nil
}

type stateResponse struct {
	SessionID string                         `json:"sessionId"`
	HasKey    bool                           `json:"hasKey"`
	Agents    map[string]analysis.AgentState `json:"agents"`
}

// GET /api/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) error {
	state := s.sessionFor(w, r)
	writeJSON(w, http.StatusOK, stateResponse{
		SessionID: state.ID,
		HasKey:    s.apiKeyFor(state) != "",
		Agents:    state.Agents.Snapshot(),
	})
	return nil
}

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		return nil, err
	}
	return r.MultipartForm, nil
}

// readUploads loads accepted image files. Files with other extensions or that
// cannot be read are skipped with a notice.
func readUploads(headers []*multipart.FileHeader) ([]llm.Image, []string) {
	var images []llm.Image
	var notices []string

	for _, fh := range headers {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		fallbackMIME, ok := mimeByExt[ext]
		if !ok {
			notices = append(notices, fmt.Sprintf("Skipped %s: only %s files are accepted", fh.Filename, acceptedFileExts))
			continue
		}

		data, err := readFileHeader(fh)
		if err != nil {
			notices = append(notices, fmt.Sprintf("Skipped %s: %v", fh.Filename, err))
			continue
		}
		if len(data) == 0 {
			notices = append(notices, fmt.Sprintf("Skipped %s: file is empty", fh.Filename))
			continue
		}

		mimeType := http.DetectContentType(data)
		if !strings.HasPrefix(mimeType, "image/") {
			mimeType = fallbackMIME
		}
		images = append(images, llm.Image{Name: fh.Filename, Data: data, MIMEType: mimeType})
	}

	return images, notices
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func previewFiles(images []llm.Image) []preview.File {
	files := make([]preview.File, len(images))
	for i, img := range images {
		files[i] = preview.File{Name: img.Name, Data: img.Data}
	}
	return files
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

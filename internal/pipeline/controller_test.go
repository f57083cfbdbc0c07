package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"asset-studio/internal/apperr"
	"asset-studio/internal/backend"
	"asset-studio/internal/modality"
	"asset-studio/internal/payload"
	"asset-studio/internal/render"
	"asset-studio/internal/viewer"
)

const tetrahedron = `{"vertices":[[0,0,0],[1,0,0],[0,1,0],[0,0,1]],"faces":[[0,1,2],[0,1,3],[0,2,3],[1,2,3]]}`

// fakeService is an in-process stand-in for the processing backend.
type fakeService struct {
	mu       sync.Mutex
	files    map[string][]byte
	requests []map[string]any
	hits     int
	failNext string // error message returned by the next call

	arrived chan struct{} // signalled when a technique request arrives
	release chan struct{} // technique requests wait on it when non-nil
}

func newFakeService() *fakeService {
	return &fakeService{files: make(map[string][]byte)}
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits++
	fail := f.failNext
	f.failNext = ""
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail != "" {
		_ = json.NewEncoder(w).Encode(map[string]string{"error": fail})
		return
	}
	if r.URL.Path == "/upload/" {
		f.upload(w, r)
		return
	}
	f.techniques(w, r)
}

func (f *fakeService) upload(w http.ResponseWriter, r *http.Request) {
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	f.mu.Lock()
	f.files[hdr.Filename] = data
	f.mu.Unlock()

	var fileType, preview string
	switch strings.TrimPrefix(path.Ext(hdr.Filename), ".") {
	case "txt":
		fileType, preview = "text", string(data)
	case "png":
		fileType, preview = "image", base64.StdEncoding.EncodeToString(data)
	case "wav":
		fileType, preview = "audio", base64.StdEncoding.EncodeToString(data)
	case "obj":
		fileType, preview = "3d", `{"vertices": 4, "faces": 4, "bounds": [[0,0,0],[1,1,1]]}`
	default:
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unsupported file type"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"filename": hdr.Filename, "file_type": fileType, "preview": preview,
	})
}

func (f *fakeService) techniques(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests = append(f.requests, body)
	src := f.files[body["filename"].(string)]
	arrived, release := f.arrived, f.release
	f.mu.Unlock()

	if arrived != nil {
		arrived <- struct{}{}
	}
	if release != nil {
		<-release
	}

	fileType := path.Base(r.URL.Path)
	input := string(src)
	if pr, ok := body["preprocessed_result"].(string); ok {
		input = pr
	}

	out := make(map[string]string)
	for _, t := range body["techniques"].([]any) {
		id := t.(string)
		switch fileType {
		case "text":
			switch id {
			case "lowercase":
				out[id] = strings.ToLower(input)
			case "synonym":
				out[id] = strings.ReplaceAll(input, "hello", "hi")
			default:
				out[id] = input
			}
		case "3d":
			out[id] = tetrahedron
		default:
			if _, ok := body["preprocessed_result"]; ok {
				out[id] = input
			} else {
				out[id] = base64.StdEncoding.EncodeToString(src)
			}
		}
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (f *fakeService) lastRequest() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeService) hitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

type harness struct {
	svc     *fakeService
	ctrl    *Controller
	viewers *viewer.Manager
	page    *viewer.Page
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	svc := newFakeService()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, zap.NewNop())
	require.NoError(t, err)

	page := viewer.NewPage()
	viewers := viewer.NewManager(page, viewer.WithFrameRate(60))
	registry := render.NewDefaultRegistry(zap.NewNop(), viewers, 64)
	ctrl := New(client, registry, viewers, page, WithLogger(zap.NewNop()), WithPanelSize(64, 48))
	t.Cleanup(func() { _ = ctrl.Close() })

	return &harness{svc: svc, ctrl: ctrl, viewers: viewers, page: page}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for i := range img.Pix {
		img.Pix[i] = byte(i * 7)
	}
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func wavBytes() []byte {
	const rate, samples = 8000, 800
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+samples*2))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(samples*2))
	buf.Write(make([]byte, samples*2))
	return buf.Bytes()
}

func TestUploadThenResetRestoresOriginal(t *testing.T) {
	cases := []struct {
		name      string
		filename  string
		data      []byte
		modality  modality.Modality
		technique string
	}{
		{"text", "notes.txt", []byte("Hello World"), modality.Text, "lowercase"},
		{"image", "pic.png", pngBytes(t), modality.Image, "grayscale"},
		{"audio", "clip.wav", wavBytes(), modality.Audio, "normalize"},
		{"mesh", "cube.obj", []byte("v 0 0 0\n"), modality.Mesh, "normalize"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()

			sess, err := h.ctrl.Upload(ctx, tc.filename, bytes.NewReader(tc.data))
			require.NoError(t, err)
			assert.Equal(t, tc.modality, sess.Modality)
			original := sess.Original.Data

			batch, err := h.ctrl.RunTechniques(ctx, Preprocess, NewSelection(tc.technique))
			require.NoError(t, err)
			res, ok := batch.Result(tc.technique)
			require.True(t, ok)
			require.NoError(t, res.Promote())

			active, ok := h.ctrl.ActivePreview()
			require.True(t, ok)
			assert.Equal(t, tc.technique, active.Technique)

			h.ctrl.ResetSelection()
			active, ok = h.ctrl.ActivePreview()
			require.True(t, ok)
			assert.True(t, active.IsPreview())
			assert.Equal(t, original, active.Data)
			_, selected := h.ctrl.Session().Selected()
			assert.False(t, selected)
		})
	}
}

func TestRunTechniques_EmptySelectionMakesNoRequest(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Upload(context.Background(), "notes.txt", strings.NewReader("Hello"))
	require.NoError(t, err)
	before := h.svc.hitCount()

	for _, kind := range []Kind{Preprocess, Augment} {
		for _, sel := range []Selection{nil, {}, {"", "  "}} {
			_, err := h.ctrl.RunTechniques(context.Background(), kind, sel)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.CodeEmptySelection), "%s %v", kind, sel)
		}
	}
	assert.Equal(t, before, h.svc.hitCount())
}

func TestAugment_PreprocessedResultOnlyWhenSelected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctrl.Upload(ctx, "notes.txt", strings.NewReader("Hello World"))
	require.NoError(t, err)

	_, err = h.ctrl.RunTechniques(ctx, Augment, NewSelection("synonym"))
	require.NoError(t, err)
	_, present := h.svc.lastRequest()["preprocessed_result"]
	assert.False(t, present)

	batch, err := h.ctrl.RunTechniques(ctx, Preprocess, NewSelection("lowercase"))
	require.NoError(t, err)
	_, present = h.svc.lastRequest()["preprocessed_result"]
	assert.False(t, present, "preprocess never carries preprocessed_result")

	res, _ := batch.Result("lowercase")
	require.NoError(t, res.Promote())
	aug, err := h.ctrl.RunTechniques(ctx, Augment, NewSelection("synonym"))
	require.NoError(t, err)
	assert.True(t, aug.Chained)
	assert.Equal(t, "hello world", h.svc.lastRequest()["preprocessed_result"])

	h.ctrl.ResetSelection()
	_, err = h.ctrl.RunTechniques(ctx, Augment, NewSelection("synonym"))
	require.NoError(t, err)
	_, present = h.svc.lastRequest()["preprocessed_result"]
	assert.False(t, present)
}

func TestTextChaining(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctrl.Upload(ctx, "greeting.txt", strings.NewReader("Hello World"))
	require.NoError(t, err)

	pre, err := h.ctrl.RunTechniques(ctx, Preprocess, NewSelection("lowercase"))
	require.NoError(t, err)
	lower, ok := pre.Result("lowercase")
	require.True(t, ok)
	tv, ok := lower.(*render.TextView)
	require.True(t, ok)
	assert.Equal(t, "hello world", tv.Text)

	require.NoError(t, lower.Promote())
	aug, err := h.ctrl.RunTechniques(ctx, Augment, NewSelection("synonym"))
	require.NoError(t, err)

	req := h.svc.lastRequest()
	assert.Equal(t, "greeting.txt", req["filename"])
	assert.Equal(t, []any{"synonym"}, req["techniques"])
	assert.Equal(t, "hello world", req["preprocessed_result"])

	syn, ok := aug.Result("synonym")
	require.True(t, ok)
	assert.Equal(t, "hi world", syn.(*render.TextView).Text)
}

func TestRunTechniques_RejectsSecondOfSameKind(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctrl.Upload(ctx, "notes.txt", strings.NewReader("Hello"))
	require.NoError(t, err)

	h.svc.mu.Lock()
	h.svc.arrived = make(chan struct{}, 1)
	h.svc.release = make(chan struct{})
	arrived, release := h.svc.arrived, h.svc.release
	h.svc.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.RunTechniques(ctx, Preprocess, NewSelection("lowercase"))
		done <- err
	}()
	<-arrived

	_, err = h.ctrl.RunTechniques(ctx, Preprocess, NewSelection("tokenize"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeRequestInFlight))

	close(release)
	require.NoError(t, <-done)

	h.svc.mu.Lock()
	h.svc.arrived, h.svc.release = nil, nil
	h.svc.mu.Unlock()
	_, err = h.ctrl.RunTechniques(ctx, Preprocess, NewSelection("tokenize"))
	assert.NoError(t, err)
}

// gate makes the next technique requests block until the returned release
// channel is closed.
func (f *fakeService) gate() (arrived chan struct{}, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.arrived = make(chan struct{}, 1)
	f.release = make(chan struct{})
	return f.arrived, f.release
}

func (f *fakeService) ungate() {
	f.mu.Lock()
	f.arrived, f.release = nil, nil
	f.mu.Unlock()
}

func TestRunTechniques_InFlightScopedToSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctrl.Upload(ctx, "a.txt", strings.NewReader("Alpha"))
	require.NoError(t, err)

	arrived, release := h.svc.gate()
	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.RunTechniques(ctx, Preprocess, NewSelection("lowercase"))
		done <- err
	}()
	<-arrived
	h.svc.ungate()

	_, err = h.ctrl.Upload(ctx, "b.txt", strings.NewReader("Bravo"))
	require.NoError(t, err)

	batch, err := h.ctrl.RunTechniques(ctx, Preprocess, NewSelection("lowercase"))
	require.NoError(t, err)
	res, ok := batch.Result("lowercase")
	require.True(t, ok)
	assert.Equal(t, "bravo", res.(*render.TextView).Text)

	close(release)
	err = <-done
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeRequest))

	_, err = h.ctrl.RunTechniques(ctx, Preprocess, NewSelection("tokenize"))
	assert.NoError(t, err)
}

func TestAugment_SelectionAfterDispatchAppliesToNextRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctrl.Upload(ctx, "notes.txt", strings.NewReader("Hello World"))
	require.NoError(t, err)

	pre, err := h.ctrl.RunTechniques(ctx, Preprocess, NewSelection("lowercase", "tokenize"))
	require.NoError(t, err)
	first, ok := pre.Result("lowercase")
	require.True(t, ok)
	second, ok := pre.Result("tokenize")
	require.True(t, ok)
	require.NoError(t, first.Promote())

	arrived, release := h.svc.gate()
	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.RunTechniques(ctx, Augment, NewSelection("synonym"))
		done <- err
	}()
	<-arrived
	require.NoError(t, second.Promote())
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "hello world", h.svc.lastRequest()["preprocessed_result"])

	h.svc.ungate()
	_, err = h.ctrl.RunTechniques(ctx, Augment, NewSelection("synonym"))
	require.NoError(t, err)
	assert.Equal(t, "Hello World", h.svc.lastRequest()["preprocessed_result"])
}

func TestUpload_FailureKeepsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.ctrl.Upload(ctx, "notes.txt", strings.NewReader("Hello"))
	require.NoError(t, err)

	_, err = h.ctrl.Upload(ctx, "virus.exe", strings.NewReader("MZ"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeUpload))

	cur := h.ctrl.Session()
	require.NotNil(t, cur)
	assert.Equal(t, first.ID, cur.ID)
	assert.Equal(t, "Hello", cur.Original.Data)
}

func TestUpload_FailureWithoutPriorSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Upload(context.Background(), "virus.exe", strings.NewReader("MZ"))
	require.Error(t, err)
	assert.Nil(t, h.ctrl.Session())
	assert.Nil(t, h.ctrl.Preview())
}

func TestRunTechniques_WithoutSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.RunTechniques(context.Background(), Preprocess, NewSelection("lowercase"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeRequest))
	assert.Zero(t, h.svc.hitCount())
}

func TestRunTechniques_BackendErrorLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctrl.Upload(ctx, "notes.txt", strings.NewReader("Hello"))
	require.NoError(t, err)
	batch, err := h.ctrl.RunTechniques(ctx, Preprocess, NewSelection("lowercase"))
	require.NoError(t, err)
	res, _ := batch.Result("lowercase")
	require.NoError(t, res.Promote())
	mounts := h.ctrl.ResultMounts()

	h.svc.mu.Lock()
	h.svc.failNext = "Invalid file type"
	h.svc.mu.Unlock()

	_, err = h.ctrl.RunTechniques(ctx, Augment, NewSelection("synonym"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeRequest))
	assert.Contains(t, err.Error(), "Invalid file type")

	sel, ok := h.ctrl.Session().Selected()
	require.True(t, ok)
	assert.Equal(t, "lowercase", sel.Technique)
	assert.Equal(t, mounts, h.ctrl.ResultMounts())
}

func TestSelectResultAsInput_RejectsOtherModality(t *testing.T) {
	h := newHarness(t)
	err := h.ctrl.SelectResultAsInput(payload.New(modality.Text, "lowercase", "x"))
	assert.True(t, apperr.Is(err, apperr.CodeRequest))

	_, err = h.ctrl.Upload(context.Background(), "notes.txt", strings.NewReader("Hello"))
	require.NoError(t, err)
	err = h.ctrl.SelectResultAsInput(payload.New(modality.Image, "flip", "AAAA"))
	require.Error(t, err)
	assert.ErrorIs(t, err, payload.ErrModalityMismatch)
	_, selected := h.ctrl.Session().Selected()
	assert.False(t, selected)
}

func TestMeshResultsLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ctrl.Upload(ctx, "cube.obj", strings.NewReader("v 0 0 0\n"))
	require.NoError(t, err)
	_, isSummary := h.ctrl.Preview().(*render.MeshSummaryView)
	assert.True(t, isSummary)
	assert.Zero(t, h.viewers.Len())

	batch, err := h.ctrl.RunTechniques(ctx, Preprocess, NewSelection("normalize", "center"))
	require.NoError(t, err)
	require.Len(t, batch.Entries, 2)
	assert.Equal(t, "normalize", batch.Entries[0].Technique)
	for _, e := range batch.Entries {
		mv, ok := e.Result.(*render.MeshView)
		require.True(t, ok, e.Technique)
		assert.True(t, mv.Mounted)
		assert.Equal(t, 4, mv.Viewer.Vertices)
	}
	assert.Equal(t, 2, h.viewers.Len())

	_, err = h.ctrl.RunTechniques(ctx, Augment, NewSelection("rotate"))
	require.NoError(t, err)
	assert.Equal(t, []string{"result-augment-rotate"}, h.viewers.MountIDs())
	_, stillThere := h.page.Element("result-preprocess-normalize")
	assert.False(t, stillThere)

	_, err = h.ctrl.Upload(ctx, "other.obj", strings.NewReader("v 1 1 1\n"))
	require.NoError(t, err)
	assert.Zero(t, h.viewers.Len())
	assert.Empty(t, h.ctrl.ResultMounts())
}

func TestClose_DisposesViewers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctrl.Upload(ctx, "cube.obj", strings.NewReader("v 0 0 0\n"))
	require.NoError(t, err)
	_, err = h.ctrl.RunTechniques(ctx, Preprocess, NewSelection("normalize"))
	require.NoError(t, err)
	require.Equal(t, 1, h.viewers.Len())

	require.NoError(t, h.ctrl.Close())
	assert.Zero(t, h.viewers.Len())
}

func TestRunTechniques_UnknownKind(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.RunTechniques(context.Background(), Kind("transcode"), NewSelection("x"))
	assert.True(t, apperr.Is(err, apperr.CodeRequest))
}

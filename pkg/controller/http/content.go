package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/interfaces"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/utils/async"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/utils/errutil"
)

const maxDescriptorSize = 1 << 20

// ContentHandler serves the offline cache over HTTP
type ContentHandler struct {
	cacheUC interfaces.OfflineCacheUseCase
	records interfaces.RecordStore
}

// NewContentHandler creates a new ContentHandler. records may be nil, which disables Sync.
func NewContentHandler(cacheUC interfaces.OfflineCacheUseCase, records interfaces.RecordStore) *ContentHandler {
	return &ContentHandler{
		cacheUC: cacheUC,
		records: records,
	}
}

// List returns every cached record
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.cacheUC.GetDownloadedContentList(r.Context()))
}

// Get returns the cached record of one content
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	rec, ok := h.cacheUC.GetOfflineContent(ctx, id)
	if !ok {
		writeError(ctx, w, goerr.New("content is not cached", goerr.V("id", id)), http.StatusNotFound)
		return
	}
	writeJSON(ctx, w, http.StatusOK, rec)
}

// Download caches the descriptor in the request body under the id of the path
func (h *ContentHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDescriptorSize))
	if err != nil {
		writeError(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var d model.ContentDescriptor
	if err := json.Unmarshal(body, &d); err != nil {
		writeError(ctx, w, goerr.Wrap(err, "invalid content descriptor"), http.StatusBadRequest)
		return
	}
	if d.ID != "" && d.ID != id {
		writeError(ctx, w, goerr.New("descriptor id does not match path",
			goerr.V("path_id", id),
			goerr.V("body_id", d.ID),
		), http.StatusBadRequest)
		return
	}
	d.ID = id

	h.download(w, r, &d)
}

// Sync pulls the descriptor of id from the remote record store and caches it
func (h *ContentHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if h.records == nil {
		writeError(ctx, w, goerr.New("remote record store is not configured"), http.StatusNotImplemented)
		return
	}

	d, err := h.records.GetDescriptor(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrRecordNotFound) {
			writeError(ctx, w, goerr.New("content document not found", goerr.V("id", id)), http.StatusNotFound)
			return
		}
		errutil.Handle(ctx, err, "Failed to load content document")
		writeError(ctx, w, goerr.New("failed to load content document", goerr.V("id", id)), http.StatusBadGateway)
		return
	}

	h.download(w, r, d)
}

func (h *ContentHandler) download(w http.ResponseWriter, r *http.Request, d *model.ContentDescriptor) {
	ctx := r.Context()

	if err := model.ValidateContentID(d.ID); err != nil {
		writeError(ctx, w, err, http.StatusBadRequest)
		return
	}

	if wantAsync(r) {
		async.Dispatch(ctx, func(ctx context.Context) error {
			if !h.cacheUC.DownloadContent(ctx, d) {
				return goerr.New("background download failed", goerr.V("id", d.ID))
			}
			return nil
		})
		writeJSON(ctx, w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"id":     d.ID,
		})
		return
	}

	if !h.cacheUC.DownloadContent(ctx, d) {
		writeError(ctx, w, goerr.New("failed to download content", goerr.V("id", d.ID)), http.StatusBadGateway)
		return
	}

	rec, ok := h.cacheUC.GetOfflineContent(ctx, d.ID)
	if !ok {
		writeError(ctx, w, goerr.New("downloaded content is missing from the index", goerr.V("id", d.ID)), http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, w, http.StatusOK, rec)
}

// Remove deletes the cached copy of one content
func (h *ContentHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if !h.cacheUC.RemoveContent(ctx, id) {
		writeError(ctx, w, goerr.New("failed to remove content", goerr.V("id", id)), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Verify runs an integrity check. Query parameters check_remote and remove_orphans
// enable the optional passes.
func (h *ContentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var opts model.VerifyOptions
	var err error
	if opts.CheckRemote, err = queryBool(r, "check_remote"); err != nil {
		writeError(ctx, w, err, http.StatusBadRequest)
		return
	}
	if opts.RemoveOrphans, err = queryBool(r, "remove_orphans"); err != nil {
		writeError(ctx, w, err, http.StatusBadRequest)
		return
	}

	report, ok := h.cacheUC.VerifyCacheIntegrity(ctx, opts)
	if !ok {
		writeError(ctx, w, goerr.New("integrity check failed"), http.StatusInternalServerError)
		return
	}
	ctxlog.From(ctx).Debug("Integrity check finished", "evicted", len(report.Evicted))
	writeJSON(ctx, w, http.StatusOK, report)
}

func wantAsync(r *http.Request) bool {
	v, err := queryBool(r, "async")
	return err == nil && v
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, goerr.Wrap(err, "invalid boolean query parameter", goerr.V("name", name), goerr.V("value", raw))
	}
	return v, nil
}

package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/zeromicro/go-zero/rest/pathvar"

	"github.com/pixles/authcore/internal/apierr"
	"github.com/pixles/authcore/internal/reqctx"
	"github.com/pixles/authcore/internal/svc"
	"github.com/pixles/authcore/internal/types"
)

// UploadCreateHandler implements POST /upload (spec §4.8 "Create").
// Request shape rides headers, not a JSON body, matching spec §6's table.
func UploadCreateHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := reqctx.FromContext(r.Context())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}

		var totalSize *int64
		if raw := r.Header.Get("X-Pixles-Content-Length"); raw != "" {
			n, perr := strconv.ParseInt(raw, 10, 64)
			if perr != nil || n < 0 {
				writeError(r.Context(), w, apierr.BadRequest(map[string]string{"x-pixles-content-length": "must be a non-negative integer"}))
				return
			}
			totalSize = &n
		}

		filename := r.Header.Get("X-Pixles-Filename")
		contentType := r.Header.Get("X-Pixles-Content-Type")

		sess, suggested, err := svcCtx.UploadState.Create(r.Context(), principal.UserID, filename, contentType, totalSize)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}

		uploadURL := fmt.Sprintf("/upload/%s", sess.ID)
		w.Header().Set("Location", uploadURL)
		w.Header().Set("X-Pixles-Suggested-Chunk-Size", strconv.FormatInt(suggested, 10))
		writeJSON(w, http.StatusCreated, types.UploadCreateResponse{
			ID:                 sess.ID,
			UploadURL:          uploadURL,
			SuggestedChunkSize: suggested,
		})
	}
}

// UploadHeadHandler implements HEAD /upload/{id} (spec §4.8 "Head").
func UploadHeadHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := reqctx.FromContext(r.Context())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		id := pathvar.Vars(r)["id"]

		sess, err := svcCtx.UploadState.Head(r.Context(), id)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		if sess.UserID != principal.UserID {
			writeError(r.Context(), w, apierr.New(apierr.KindForbidden, "not the upload owner"))
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Pixles-Offset", strconv.FormatInt(sess.ReceivedBytes, 10))
		if sess.TotalSize != nil {
			w.Header().Set("X-Pixles-Content-Length", strconv.FormatInt(*sess.TotalSize, 10))
		}
		w.WriteHeader(http.StatusOK)
	}
}

// UploadAppendHandler implements PATCH /upload/{id} (spec §4.8 "AppendChunk")
// and triggers finalize once the declared total size is reached.
func UploadAppendHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := reqctx.FromContext(r.Context())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		id := pathvar.Vars(r)["id"]

		offsetRaw := r.Header.Get("X-Pixles-Offset")
		offset, perr := strconv.ParseInt(offsetRaw, 10, 64)
		if perr != nil || offset < 0 {
			writeError(r.Context(), w, apierr.New(apierr.KindInvalidChunkSize, "X-Pixles-Offset must be a non-negative integer"))
			return
		}

		existing, err := svcCtx.UploadState.Head(r.Context(), id)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		if existing.UserID != principal.UserID {
			writeError(r.Context(), w, apierr.New(apierr.KindForbidden, "not the upload owner"))
			return
		}

		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(r.Context(), w, apierr.Internal(err))
			return
		}
		if len(data) == 0 {
			writeError(r.Context(), w, apierr.New(apierr.KindInvalidChunkSize, "chunk body must not be empty"))
			return
		}

		updated, err := svcCtx.UploadState.AppendChunk(r.Context(), id, offset, data)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}

		if updated.TotalSize != nil && updated.ReceivedBytes == *updated.TotalSize {
			if _, ferr := svcCtx.Finalizer.Finalize(r.Context(), id); ferr != nil {
				writeError(r.Context(), w, ferr)
				return
			}
		}

		w.Header().Set("X-Pixles-Offset", strconv.FormatInt(updated.ReceivedBytes, 10))
		w.WriteHeader(http.StatusNoContent)
	}
}

// UploadCancelHandler implements DELETE /upload/{id} (spec §4.8 "Cancel").
func UploadCancelHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := reqctx.FromContext(r.Context())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		id := pathvar.Vars(r)["id"]

		sess, err := svcCtx.UploadState.Head(r.Context(), id)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		if sess.UserID != principal.UserID {
			writeError(r.Context(), w, apierr.New(apierr.KindForbidden, "not the upload owner"))
			return
		}

		if err := svcCtx.UploadState.Cancel(r.Context(), id); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

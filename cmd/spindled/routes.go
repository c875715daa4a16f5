package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/spiritengine/spindle/internal/facade"
	"github.com/spiritengine/spindle/internal/spool"
)

// registerToolRoutes wires one route per tool-surface entry (spec §6), each
// bound to either POST or GET, all under /v1.
func registerToolRoutes(r *mux.Router, f *facade.Facade) {
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/spin", handleSpin(f)).Methods(http.MethodPost)
	v1.HandleFunc("/respin", handleRespin(f)).Methods(http.MethodPost)
	v1.HandleFunc("/unspool/{id}", handleUnspool(f)).Methods(http.MethodGet)
	v1.HandleFunc("/spin_wait", handleSpinWait(f)).Methods(http.MethodPost)
	v1.HandleFunc("/spin_drop/{id}", handleSpinDrop(f)).Methods(http.MethodPost)
	v1.HandleFunc("/spools", handleSpools(f)).Methods(http.MethodGet)
	v1.HandleFunc("/spool_search", handleSpoolSearch(f)).Methods(http.MethodGet)
	v1.HandleFunc("/spool_results", handleSpoolResults(f)).Methods(http.MethodGet)
	v1.HandleFunc("/spool_grep", handleSpoolGrep(f)).Methods(http.MethodGet)
	v1.HandleFunc("/spool_peek/{id}", handleSpoolPeek(f)).Methods(http.MethodGet)
	v1.HandleFunc("/spool_retry/{id}", handleSpoolRetry(f)).Methods(http.MethodPost)
	v1.HandleFunc("/spool_stats", handleSpoolStats(f)).Methods(http.MethodGet)
	v1.HandleFunc("/spool_export", handleSpoolExport(f)).Methods(http.MethodPost)
	v1.HandleFunc("/spool_info/{id}", handleSpoolInfo(f)).Methods(http.MethodGet)
	v1.HandleFunc("/spool_dashboard", handleSpoolDashboard(f)).Methods(http.MethodGet)
	v1.HandleFunc("/shard_status/{id}", handleShardStatus(f)).Methods(http.MethodGet)
	v1.HandleFunc("/shard_merge/{id}", handleShardMerge(f)).Methods(http.MethodPost)
	v1.HandleFunc("/shard_abandon/{id}", handleShardAbandon(f)).Methods(http.MethodPost)
	v1.HandleFunc("/triage", handleTriage(f)).Methods(http.MethodPost)
	v1.HandleFunc("/spindle_reload", handleSpindleReload(f)).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type spinRequest struct {
	Prompt       string   `json:"prompt"`
	Permission   string   `json:"permission"`
	Shard        *bool    `json:"shard"`
	SystemPrompt *string  `json:"system_prompt"`
	WorkingDir   string   `json:"working_dir"`
	AllowedTools *string  `json:"allowed_tools"`
	Tags         []string `json:"tags"`
	Model        *string  `json:"model"`
	Timeout      *int     `json:"timeout"`
	Skeinless    bool     `json:"skeinless"`
	Harness      string   `json:"harness"`
}

func handleSpin(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req spinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		args := facade.SpinArgs{
			Prompt:       req.Prompt,
			Permission:   req.Permission,
			SystemPrompt: req.SystemPrompt,
			WorkingDir:   req.WorkingDir,
			AllowedTools: req.AllowedTools,
			Tags:         req.Tags,
			Model:        req.Model,
			Timeout:      req.Timeout,
			Skeinless:    req.Skeinless,
			Harness:      spool.Harness(req.Harness),
		}
		if req.Shard != nil {
			args.ShardSet = true
			args.Shard = *req.Shard
		}
		id, err := f.Spin(r.Context(), args)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": id})
	}
}

type respinRequest struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

func handleRespin(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req respinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		id, transcriptAvailable, err := f.Respin(r.Context(), req.SessionID, req.Prompt)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":                            id,
			"transcript_fallback_available": transcriptAvailable,
		})
	}
}

func handleUnspool(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		rec, err := f.Unspool(id)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

type spinWaitRequest struct {
	IDs     []string `json:"ids"`
	Mode    string   `json:"mode"`
	Timeout int      `json:"timeout_seconds"`
}

func handleSpinWait(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req spinWaitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := f.SpinWait(r.Context(), req.IDs, req.Mode, req.Timeout)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleSpinDrop(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := f.SpinDrop(id); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func handleSpools(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.Spools())
	}
}

func handleSpoolSearch(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		matches, err := f.SpoolSearch(q.Get("query"), q.Get("field"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

func handleSpoolResults(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 0
		if l := q.Get("limit"); l != "" {
			json.Unmarshal([]byte(l), &limit)
		}
		recs, err := f.SpoolResults(q.Get("status"), q.Get("since"), limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func handleSpoolGrep(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matches, err := f.SpoolGrep(r.URL.Query().Get("pattern"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

func handleSpoolPeek(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		lines := 50
		if l := r.URL.Query().Get("lines"); l != "" {
			json.Unmarshal([]byte(l), &lines)
		}
		result, err := f.SpoolPeek(id, lines)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleSpoolRetry(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		newID, err := f.SpoolRetry(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": newID})
	}
}

func handleSpoolStats(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.SpoolStats())
	}
}

type spoolExportRequest struct {
	IDs        []string `json:"ids"`
	Format     string   `json:"format"`
	OutputPath string   `json:"output_path"`
}

func handleSpoolExport(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req spoolExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		path, err := f.SpoolExport(req.IDs, req.Format, req.OutputPath)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"path": path})
	}
}

func handleSpoolInfo(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		info, err := f.SpoolInfo(id)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func handleSpoolDashboard(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.SpoolDashboard(r.Context()))
	}
}

func handleShardStatus(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		status, err := f.ShardStatus(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

type shardActionRequest struct {
	KeepBranch bool   `json:"keep_branch"`
	CallerCwd  string `json:"caller_cwd"`
}

func handleShardMerge(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		var req shardActionRequest
		json.NewDecoder(r.Body).Decode(&req)
		commit, err := f.ShardMerge(r.Context(), id, req.KeepBranch, req.CallerCwd)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"commit": commit})
	}
}

func handleShardAbandon(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		var req shardActionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if err := f.ShardAbandon(r.Context(), id, req.KeepBranch, req.CallerCwd); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

type triageRequest struct {
	WorktreePath string `json:"worktree_path"`
}

func handleTriage(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req triageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		id, err := f.Triage(r.Context(), req.WorktreePath)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": id})
	}
}

func handleSpindleReload(f *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f.SpindleReload(); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

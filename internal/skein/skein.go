// Package skein is the client for the optional peer "workflow" service
// (spec §6 SKEIN contract, Glossary "Tender"). All failures are non-fatal:
// SKEIN-aware paths silently disable themselves (spec §7 "Peer-service
// unavailability").
package skein

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

const httpTimeout = 10 * time.Second
const probeTimeout = 10 * time.Second

// Client talks to a local SKEIN instance over its CLI (for shard spawn) and
// its HTTP API (for tender bookkeeping).
type Client struct {
	baseURL string
	agentID string
	http    *http.Client
}

// New returns a Client. It does not probe availability eagerly; call
// Healthy() before relying on it.
func New(baseURL, agentID string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), agentID: agentID, http: &http.Client{Timeout: httpTimeout}}
}

// Healthy runs `skein health --json` and reports whether it returned
// {"healthy": true}.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "skein", "health", "--json")
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	var resp struct {
		Healthy bool `json:"healthy"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return false
	}
	return resp.Healthy
}

// ShardSpawnResult is what SpawnShard parses from `skein shard spawn`
// stdout (spec §4.6 step 1).
type ShardSpawnResult struct {
	WorktreePath string
	BranchName   string
	ShardID      string
}

// SpawnShard runs `skein shard spawn --agent <id> --description <text>` and
// parses the `Worktree:`, `Branch:`, and `Spawned SHARD:` labels from its
// stdout.
func (c *Client) SpawnShard(ctx context.Context, agentID, description string) (ShardSpawnResult, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "skein", "shard", "spawn", "--agent", agentID, "--description", description)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return ShardSpawnResult{}, fmt.Errorf("skein: shard spawn: %w", err)
	}
	return parseShardSpawnOutput(out.String()), nil
}

func parseShardSpawnOutput(output string) ShardSpawnResult {
	var r ShardSpawnResult
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Worktree:"):
			r.WorktreePath = strings.TrimSpace(strings.TrimPrefix(line, "Worktree:"))
		case strings.HasPrefix(line, "Branch:"):
			r.BranchName = strings.TrimSpace(strings.TrimPrefix(line, "Branch:"))
		case strings.HasPrefix(line, "Spawned SHARD:"):
			r.ShardID = strings.TrimSpace(strings.TrimPrefix(line, "Spawned SHARD:"))
		}
	}
	return r
}

type folio struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Metadata struct {
		WorktreeName string `json:"worktree_name"`
	} `json:"metadata"`
}

// CloseTender finds open tender folios matching worktreeName and posts a
// closing status thread to each. Every failure is swallowed (spec §6).
func (c *Client) CloseTender(ctx context.Context, worktreeName string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/folios?type=tender", nil)
	if err != nil {
		return
	}
	req.Header.Set("X-Agent-ID", c.agentID)
	resp, err := c.http.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	var folios []folio
	if err := json.NewDecoder(resp.Body).Decode(&folios); err != nil {
		return
	}

	for _, f := range folios {
		if f.Metadata.WorktreeName != worktreeName || f.Status == "closed" {
			continue
		}
		body, _ := json.Marshal(map[string]string{
			"from_id": f.ID,
			"to_id":   f.ID,
			"type":    "status",
			"content": "closed",
		})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/threads", bytes.NewReader(body))
		if err != nil {
			continue
		}
		req.Header.Set("X-Agent-ID", c.agentID)
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
	}
}

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9]+`)
	leadingDigits = regexp.MustCompile(`^(\d+)`)
)

// FeatureBranchTool creates a numbered feature branch and its specs directory
type FeatureBranchTool struct {
	Workspace *Workspace
}

func (t *FeatureBranchTool) Name() string {
	return "create_feature_branch"
}

func (t *FeatureBranchTool) Description() string {
	return "Create and switch to a numbered git feature branch (e.g. 004-user-auth) and its specs/<branch> directory. " +
		"Returns BRANCH_NAME, FEATURE_NUM and SPEC_DIR."
}

func (t *FeatureBranchTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"feature_description": map[string]any{
				"type":        "string",
				"description": "Short description of the feature; used to derive the branch name.",
			},
			"json_mode": map[string]any{
				"type":        "boolean",
				"description": "Return the result as JSON instead of $KEY: value lines (default: false).",
			},
		},
		"required": []string{"feature_description"},
	}
}

func (t *FeatureBranchTool) Permission() PermissionLevel {
	return PermissionExecute
}

func (t *FeatureBranchTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	description, err := requireString(input, "feature_description")
	if err != nil {
		return "", err
	}
	slug := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(description), "-"), "-")
	if slug == "" {
		return "", fmt.Errorf("feature_description must contain letters or digits")
	}

	repoRoot, err := t.git(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("error creating feature branch: %w", err)
	}
	repoRoot = strings.TrimSpace(repoRoot)

	specsDir := filepath.Join(repoRoot, "specs")
	if err := os.MkdirAll(specsDir, 0755); err != nil {
		return "", fmt.Errorf("error creating feature branch: %w", err)
	}

	featureNum := fmt.Sprintf("%03d", nextFeatureNumber(specsDir))
	branch := featureNum + "-" + slug

	if _, err := t.git(ctx, "checkout", "-b", branch); err != nil {
		return "", fmt.Errorf("error creating feature branch: %w", err)
	}

	featureDir := filepath.Join(specsDir, branch)
	if err := os.MkdirAll(featureDir, 0755); err != nil {
		return "", fmt.Errorf("error creating feature branch: %w", err)
	}

	if boolArg(input, "json_mode", false) {
		out, err := json.MarshalIndent(map[string]string{
			"BRANCH_NAME": branch,
			"FEATURE_NUM": featureNum,
			"SPEC_DIR":    featureDir,
		}, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	}

	return strings.Join([]string{
		"$BRANCH_NAME: " + branch,
		"$FEATURE_NUM: " + featureNum,
		"$SPEC_DIR: " + featureDir,
	}, "\n"), nil
}

// nextFeatureNumber returns one more than the highest numeric prefix under specsDir.
func nextFeatureNumber(specsDir string) int {
	entries, err := os.ReadDir(specsDir)
	if err != nil {
		return 1
	}
	highest := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if m := leadingDigits.FindStringSubmatch(e.Name()); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
				highest = n
			}
		}
	}
	return highest + 1
}

func (t *FeatureBranchTool) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = t.Workspace.Root()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}

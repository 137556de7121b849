package intake

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Result reports the pull request produced for a submission.
type Result struct {
	PullRequestURL    string `json:"pullRequestUrl"`
	PullRequestNumber int    `json:"pullRequestNumber"`
	BranchName        string `json:"branchName"`
}

// githubAPI is the slice of the GitHub client the orchestrator uses.
type githubAPI interface {
	CreatePullRequest(ctx context.Context, repo RepoRef, head, base, title, body string) (*PullRequest, error)
	EnableAutoMerge(ctx context.Context, prNodeID string) error
}

// Orchestrator drives a validated submission through worktree, commit, push,
// and pull request creation.
type Orchestrator struct {
	Manager     *Manager
	BaseBranch  string
	GitHubToken string

	log *zap.SugaredLogger

	// Test seams; nil/empty means production behavior.
	newClient func(ctx context.Context, token string) githubAPI
	pushURL   string
	now       func() time.Time
}

func NewOrchestrator(manager *Manager, baseBranch, githubToken string, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		Manager:     manager,
		BaseBranch:  baseBranch,
		GitHubToken: githubToken,
		log:         log,
	}
}

// Submit turns a validated submission into a pushed branch and pull request.
// pdfFile and docxFile are optional and only meaningful for publications.
func (o *Orchestrator) Submit(ctx context.Context, sub *Submission, pdfFile, docxFile *Upload) (*Result, error) {
	if err := AssertEditSlugUnchanged(sub); err != nil {
		return nil, err
	}
	if sub.Type != TypePublication && (pdfFile != nil || docxFile != nil) {
		return nil, validationErrf("file uploads are only supported for publications")
	}
	if pdfFile != nil {
		if err := ValidateUpload(pdfFile, "pdf"); err != nil {
			return nil, err
		}
	}
	if docxFile != nil {
		if err := ValidateUpload(docxFile, "docx"); err != nil {
			return nil, err
		}
	}

	relPath, existing, err := o.resolveTarget(sub)
	if err != nil {
		return nil, err
	}

	slug := sub.Slug()
	nowFn := o.now
	if nowFn == nil {
		nowFn = time.Now
	}
	branchName := BuildBranchName(sub.Type, slug, nowFn().UTC())
	commitMessage := BuildCommitMessage(sub.Type, sub.Mode, slug)

	worktree, err := o.Manager.Create(o.BaseBranch, branchName)
	if err != nil {
		return nil, fmt.Errorf("prepare worktree: %w", err)
	}
	defer func() {
		if err := worktree.Cleanup(); err != nil {
			o.log.Warnw("worktree cleanup failed", "dir", worktree.Dir, "error", err)
		}
	}()

	changed, err := o.writeContent(sub, worktree, relPath, existing, pdfFile, docxFile)
	if err != nil {
		return nil, err
	}

	if err := worktree.Commit(changed, commitMessage); err != nil {
		return nil, err
	}

	if o.GitHubToken == "" {
		return nil, &StatusError{
			Code: http.StatusInternalServerError,
			Msg:  "GITHUB_TOKEN is not configured; cannot publish the submission",
		}
	}

	originURL, err := o.Manager.OriginURL()
	if err != nil {
		return nil, err
	}
	repo, err := ParseRepoRef(originURL)
	if err != nil {
		return nil, err
	}
	pushURL := o.pushURL
	if pushURL == "" {
		pushURL = repo.PushURL()
	}
	if err := worktree.Push(ctx, pushURL, o.GitHubToken); err != nil {
		return nil, err
	}

	var client githubAPI
	if o.newClient != nil {
		client = o.newClient(ctx, o.GitHubToken)
	} else {
		client = NewGitHubClient(ctx, o.GitHubToken)
	}

	pr, err := client.CreatePullRequest(ctx, repo, branchName, o.BaseBranch, commitMessage, BuildPullRequestBody(sub))
	if err != nil {
		return nil, err
	}
	o.log.Infow("pull request created",
		"repo", repo.String(), "number", pr.Number, "branch", branchName)

	if sub.AutoMerge {
		if err := client.EnableAutoMerge(ctx, pr.NodeID); err != nil {
			return nil, fmt.Errorf("enable auto-merge on pull request #%d: %w", pr.Number, err)
		}
	}

	return &Result{
		PullRequestURL:    pr.URL,
		PullRequestNumber: pr.Number,
		BranchName:        branchName,
	}, nil
}

// resolveTarget decides which repo-relative file the submission writes and,
// for publication edits, loads the stored record so link merging can see it.
// Create conflicts and edit misses are caught here, before any git work.
func (o *Orchestrator) resolveTarget(sub *Submission) (relPath string, existing *PublicationData, err error) {
	switch sub.Type {
	case TypeBlog, TypePublication:
		dir := blogContentDir
		if sub.Type == TypePublication {
			dir = publicationsContentDir
		}
		found, err := findMDXBySlug(o.Manager.RepoRoot, dir, sub.Slug())
		if err != nil {
			return "", nil, err
		}
		switch sub.Mode {
		case ModeCreate:
			if found != "" {
				return "", nil, conflictErrf("a %s with slug %q already exists", sub.Type, sub.Slug())
			}
			if sub.Type == TypeBlog {
				return blogRelPath(sub.Slug()), nil, nil
			}
			return publicationRelPath(sub.Slug()), nil, nil
		case ModeEdit:
			if found == "" {
				return "", nil, notFoundErrf("no %s found with slug %q", sub.Type, sub.Slug())
			}
			if sub.Type == TypePublication {
				reader := &Reader{RepoRoot: o.Manager.RepoRoot}
				item, err := reader.getPublication(sub.Slug())
				if err != nil {
					return "", nil, err
				}
				existing = item.Data.(*PublicationData)
			}
			return found, existing, nil
		}
		return "", nil, validationErrf("unknown mode %q", sub.Mode)

	case TypeAbout, TypeProjects:
		relPath, label := aboutRelPath(), "About"
		if sub.Type == TypeProjects {
			relPath, label = projectsRelPath(), "Projects"
		}
		exists, err := pathExists(o.Manager.RepoRoot, relPath)
		if err != nil {
			return "", nil, err
		}
		switch sub.Mode {
		case ModeCreate:
			if exists {
				return "", nil, conflictErrf("%s content file already exists; use edit mode", label)
			}
		case ModeEdit:
			if !exists {
				return "", nil, notFoundErrf("%s content file does not exist yet; use create mode", label)
			}
		}
		return relPath, nil, nil
	}
	return "", nil, validationErrf("unknown content type %q", sub.Type)
}

// writeContent serializes the submission into the worktree and returns the
// repo-relative paths that changed.
func (o *Orchestrator) writeContent(sub *Submission, worktree *Worktree, relPath string, existing *PublicationData, pdfFile, docxFile *Upload) ([]string, error) {
	var (
		document []byte
		err      error
		changed  []string
	)

	switch sub.Type {
	case TypeBlog:
		document, err = serializeBlog(sub.Blog)
	case TypePublication:
		data := *sub.Publication
		data.Links = mergePublicationLinks(data, existing, pdfFile, docxFile)
		document, err = serializePublication(&data)
	case TypeAbout:
		document, err = serializeAbout(sub.About)
	case TypeProjects:
		document, err = serializeProjects(sub.Projects)
	}
	if err != nil {
		return nil, err
	}

	if err := worktree.WriteFile(relPath, document); err != nil {
		return nil, err
	}
	changed = append(changed, relPath)

	if sub.Type == TypePublication {
		if pdfFile != nil {
			assetPath := publicationPDFRelPath(sub.Slug())
			if err := worktree.WriteFile(assetPath, pdfFile.Data); err != nil {
				return nil, err
			}
			changed = append(changed, assetPath)
		}
		if docxFile != nil {
			assetPath := publicationDocxRelPath(sub.Slug())
			if err := worktree.WriteFile(assetPath, docxFile.Data); err != nil {
				return nil, err
			}
			changed = append(changed, assetPath)
		}
	}
	return changed, nil
}

// mergePublicationLinks resolves the links for a publication. An uploaded
// file always wins for pdf/docx, then the payload's explicit link, then the
// link already stored on an edited record.
func mergePublicationLinks(data PublicationData, existing *PublicationData, pdfFile, docxFile *Upload) PublicationLinks {
	links := data.Links
	slug := data.Slug

	switch {
	case pdfFile != nil:
		links.PDF = "/publications/" + slug + ".pdf"
	case links.PDF == "" && existing != nil:
		links.PDF = existing.Links.PDF
	}
	switch {
	case docxFile != nil:
		links.Docx = "/publications/" + slug + ".docx"
	case links.Docx == "" && existing != nil:
		links.Docx = existing.Links.Docx
	}
	if existing != nil {
		if links.DOI == "" {
			links.DOI = existing.Links.DOI
		}
		if links.Arxiv == "" {
			links.Arxiv = existing.Links.Arxiv
		}
		if links.Code == "" {
			links.Code = existing.Links.Code
		}
	}
	return links
}

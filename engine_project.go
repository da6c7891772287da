package hexazine

import (
	"context"

	"github.com/hexazine/hexazine/internal"
	"github.com/hexazine/hexazine/store"
)

// Projects returns full copies of the account's projects in their stored
// order.
func (e *Engine) Projects(ctx context.Context, accountID string) ([]store.Project, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return nil, ErrNotFound
	}

	projects := make([]store.Project, 0, len(account.Projects))
	for _, projectID := range account.Projects {
		if project := e.data.Projects[projectID]; project != nil {
			projects = append(projects, *project)
		}
	}
	return projects, nil
}

// ProjectsData returns a code-stripped listing of the account's projects,
// in order.
func (e *Engine) ProjectsData(ctx context.Context, accountID string) ([]ProjectInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return nil, ErrNotFound
	}

	infos := make([]ProjectInfo, 0, len(account.Projects))
	for _, projectID := range account.Projects {
		if project := e.data.Projects[projectID]; project != nil {
			infos = append(infos, ProjectInfo{
				ID:           project.ID,
				Name:         project.Name,
				Type:         int(project.Type),
				PublishToken: project.PublishToken,
			})
		}
	}
	return infos, nil
}

// Project returns one owned project, code included.
func (e *Engine) Project(ctx context.Context, accountID, projectID string) (store.Project, error) {
	if err := e.ready(); err != nil {
		return store.Project{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	project, err := e.ownedProject(accountID, projectID)
	if err != nil {
		return store.Project{}, err
	}
	return *project, nil
}

// CreateProject creates a project for the account and returns its id. An
// empty code falls back to the starter code for the project type;
// ErrProjectType reports a type with no starter code.
func (e *Engine) CreateProject(ctx context.Context, accountID, name string, projectType store.ProjectType, code string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return "", ErrNotFound
	}
	if projectType < 0 || int(projectType) >= len(e.data.StarterCodes) {
		return "", ErrProjectType
	}
	if code == "" {
		code = e.data.StarterCodes[projectType]
	}

	projectID := internal.NewID()
	e.data.Projects[projectID] = &store.Project{
		ID:      projectID,
		Account: accountID,
		Name:    name,
		Type:    projectType,
		Code:    code,
	}
	account.Projects = append(account.Projects, projectID)

	if err := e.persist(ctx); err != nil {
		return "", err
	}

	e.metricInc(MetricProjectCreated)
	return projectID, nil
}

// RenameProject renames an owned project.
func (e *Engine) RenameProject(ctx context.Context, accountID, projectID, name string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	project, err := e.ownedProject(accountID, projectID)
	if err != nil {
		return err
	}
	project.Name = name

	return e.persist(ctx)
}

// DeleteProject removes an owned project, cascading its publish-token
// entry.
func (e *Engine) DeleteProject(ctx context.Context, accountID, projectID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return ErrNotFound
	}
	project, err := e.ownedProject(accountID, projectID)
	if err != nil {
		return err
	}

	if project.PublishToken != "" {
		delete(e.data.PublishTokens, project.PublishToken)
	}
	account.Projects = removeString(account.Projects, projectID)
	delete(e.data.Projects, projectID)

	if err := e.persist(ctx); err != nil {
		return err
	}

	e.metricInc(MetricProjectDeleted)
	return nil
}

// MoveProject reorders an owned project to position within the account's
// project list.
func (e *Engine) MoveProject(ctx context.Context, accountID, projectID string, position int) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return ErrNotFound
	}
	if _, err := e.ownedProject(accountID, projectID); err != nil {
		return err
	}
	if position < 0 || position >= len(account.Projects) {
		return ErrProjectPosition
	}

	reordered := removeString(account.Projects, projectID)
	reordered = append(reordered, "")
	copy(reordered[position+1:], reordered[position:])
	reordered[position] = projectID
	account.Projects = reordered

	return e.persist(ctx)
}

// SetProjectCode replaces an owned project's code.
func (e *Engine) SetProjectCode(ctx context.Context, accountID, projectID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	project, err := e.ownedProject(accountID, projectID)
	if err != nil {
		return err
	}
	project.Code = code

	return e.persist(ctx)
}

// Publish assigns a fresh publish token to an owned project and returns
// it. A project with a live token fails with ErrAlreadyPublished.
func (e *Engine) Publish(ctx context.Context, accountID, projectID string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	project, err := e.ownedProject(accountID, projectID)
	if err != nil {
		return "", err
	}
	if project.PublishToken != "" {
		return "", ErrAlreadyPublished
	}

	token := internal.NewID()
	project.PublishToken = token
	e.data.PublishTokens[token] = &store.PublishToken{Project: projectID}

	if err := e.persist(ctx); err != nil {
		return "", err
	}

	e.metricInc(MetricProjectPublished)
	e.emitAudit(ctx, auditEventProjectPublished, true, accountID, nil, func() map[string]string {
		return map[string]string{"project_id": projectID}
	})
	return token, nil
}

// Unpublish revokes an owned project's publish token. A project with no
// live token fails with ErrNotPublished.
func (e *Engine) Unpublish(ctx context.Context, accountID, projectID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	project, err := e.ownedProject(accountID, projectID)
	if err != nil {
		return err
	}
	if project.PublishToken == "" {
		return ErrNotPublished
	}

	delete(e.data.PublishTokens, project.PublishToken)
	project.PublishToken = ""

	if err := e.persist(ctx); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventProjectUnpublished, true, accountID, nil, func() map[string]string {
		return map[string]string{"project_id": projectID}
	})
	return nil
}

// PublishedProject resolves a publish token to its project. This is the
// public lookup; no ownership applies.
func (e *Engine) PublishedProject(ctx context.Context, publishToken string) (store.Project, error) {
	if err := e.ready(); err != nil {
		return store.Project{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	token := e.data.PublishTokens[publishToken]
	if token == nil {
		return store.Project{}, ErrNotFound
	}
	project := e.data.Projects[token.Project]
	if project == nil {
		return store.Project{}, ErrNotFound
	}
	return *project, nil
}

// StarterCode returns the starter template for a project type.
func (e *Engine) StarterCode(ctx context.Context, projectType store.ProjectType) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if projectType < 0 || int(projectType) >= len(e.data.StarterCodes) {
		return "", ErrProjectType
	}
	return e.data.StarterCodes[projectType], nil
}

// SetStarterCode replaces the starter template for a project type.
func (e *Engine) SetStarterCode(ctx context.Context, projectType store.ProjectType, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if projectType < 0 || int(projectType) >= len(e.data.StarterCodes) {
		return ErrProjectType
	}
	e.data.StarterCodes[projectType] = code

	return e.persist(ctx)
}

// SubmitBugReport appends a report. The account field is taken from the
// authenticated caller, not the submitted body.
func (e *Engine) SubmitBugReport(ctx context.Context, accountID string, report BugReport) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.data.Accounts[accountID] == nil {
		return ErrNotFound
	}

	e.data.BugReports = append(e.data.BugReports, &store.BugReport{
		Account: accountID,
		Title:   report.Title,
		Summary: report.Summary,
		Steps:   report.Steps,
	})

	return e.persist(ctx)
}

// BugReports returns copies of every submitted report, oldest first.
func (e *Engine) BugReports(ctx context.Context) ([]BugReport, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	reports := make([]BugReport, 0, len(e.data.BugReports))
	for _, report := range e.data.BugReports {
		reports = append(reports, BugReport{
			Account:  report.Account,
			Title:    report.Title,
			Summary:  report.Summary,
			Steps:    report.Steps,
			Comments: report.Comments,
			Read:     report.Read,
		})
	}
	return reports, nil
}

// SetBugReport replaces the report at index, preserving its submitter.
// Admin surfaces use it to mark reports read and attach comments.
func (e *Engine) SetBugReport(ctx context.Context, index int, report BugReport) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 || index >= len(e.data.BugReports) {
		return ErrNotFound
	}

	existing := e.data.BugReports[index]
	existing.Title = report.Title
	existing.Summary = report.Summary
	existing.Steps = report.Steps
	existing.Comments = report.Comments
	existing.Read = report.Read

	return e.persist(ctx)
}

// Settings returns the account's opaque settings blob.
func (e *Engine) Settings(ctx context.Context, accountID string) (Settings, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return nil, ErrNotFound
	}

	copied := make(Settings, len(account.Settings))
	copy(copied, account.Settings)
	return copied, nil
}

// SetSettings replaces the account's settings blob without inspecting it.
func (e *Engine) SetSettings(ctx context.Context, accountID string, settings Settings) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return ErrNotFound
	}
	account.Settings = append(Settings{}, settings...)

	return e.persist(ctx)
}

// ResetSettings restores the account's settings blob to the default.
func (e *Engine) ResetSettings(ctx context.Context, accountID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return ErrNotFound
	}
	account.Settings = store.DefaultSettings()

	return e.persist(ctx)
}

// ownedProject resolves a project and checks it against the account's
// owned list. Callers hold the lock.
func (e *Engine) ownedProject(accountID, projectID string) (*store.Project, error) {
	account := e.data.Accounts[accountID]
	if account == nil {
		return nil, ErrNotFound
	}
	if !containsString(account.Projects, projectID) {
		return nil, ErrNotFound
	}
	project := e.data.Projects[projectID]
	if project == nil {
		return nil, ErrNotFound
	}
	return project, nil
}

func containsString(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}

func removeString(list []string, value string) []string {
	out := make([]string, 0, len(list))
	for _, entry := range list {
		if entry != value {
			out = append(out, entry)
		}
	}
	return out
}

package stages

import (
	"slices"
	"sync"
)

// State — артефакты run, которые стадии передают друг другу.
//
// Заполняется основными стадиями, читается post-стадиями.
type State struct {
	mu sync.Mutex

	workspace     string
	ownsWorkspace bool
	sourceDir     string
	commit        string
	images        []string
	manifest      string
	accessURL     string
}

// NewState создаёт State для рабочей директории.
// owns — директория создана run и должна быть удалена при cleanup.
func NewState(workspace string, owns bool) *State {
	return &State{workspace: workspace, ownsWorkspace: owns, sourceDir: workspace}
}

func (s *State) Workspace() (dir string, owned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspace, s.ownsWorkspace
}

func (s *State) SourceDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceDir
}

func (s *State) SetSource(dir, commit string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceDir = dir
	s.commit = commit
}

func (s *State) Commit() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit
}

// AddImages запоминает собранные образы для cleanup.
func (s *State) AddImages(refs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range refs {
		if !slices.Contains(s.images, r) {
			s.images = append(s.images, r)
		}
	}
}

func (s *State) Images() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.images)
}

func (s *State) SetManifest(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = path
}

func (s *State) Manifest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest
}

func (s *State) SetAccessURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessURL = url
}

func (s *State) AccessURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessURL
}

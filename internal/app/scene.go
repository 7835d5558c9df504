package app

import (
	"sync"
	"time"

	"github.com/verbascape/verbascape/pkg/provider/image"
)

// Scene is the most recently generated panorama together with the learner's
// description that produced it.
type Scene struct {
	Description string
	Panorama    image.Panorama
	GeneratedAt time.Time
}

// sceneStore holds the current scene. The server keeps exactly one: a new
// generation replaces the previous backdrop.
type sceneStore struct {
	mu    sync.Mutex
	scene Scene
	set   bool
}

func (s *sceneStore) Set(scene Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scene = scene
	s.set = true
}

func (s *sceneStore) Get() (Scene, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene, s.set
}

package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/oakmund/hearth/pkg/provider/chat"
	"github.com/oakmund/hearth/pkg/provider/stt"
	"github.com/oakmund/hearth/pkg/provider/tts"
	"github.com/oakmund/hearth/pkg/vad"
	"github.com/oakmund/hearth/pkg/wake"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	chat map[string]func(ProviderEntry) (chat.Provider, error)
	stt  map[string]func(ProviderEntry) (stt.Provider, error)
	tts  map[string]func(ProviderEntry) (tts.Provider, error)
	wake map[string]func(ProviderEntry) (wake.Scorer, error)
	vad  map[string]func(ProviderEntry) (vad.Classifier, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		chat: make(map[string]func(ProviderEntry) (chat.Provider, error)),
		stt:  make(map[string]func(ProviderEntry) (stt.Provider, error)),
		tts:  make(map[string]func(ProviderEntry) (tts.Provider, error)),
		wake: make(map[string]func(ProviderEntry) (wake.Scorer, error)),
		vad:  make(map[string]func(ProviderEntry) (vad.Classifier, error)),
	}
}

// RegisterChat registers a chat provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterChat(name string, factory func(ProviderEntry) (chat.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterWake registers a wake scorer factory under name.
func (r *Registry) RegisterWake(name string, factory func(ProviderEntry) (wake.Scorer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wake[name] = factory
}

// RegisterVAD registers a voice-activity classifier factory under name.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Classifier, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// CreateChat instantiates a chat provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateChat(entry ProviderEntry) (chat.Provider, error) {
	r.mu.RLock()
	factory, ok := r.chat[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: chat/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateWake instantiates a wake scorer using the factory registered under entry.Name.
func (r *Registry) CreateWake(entry ProviderEntry) (wake.Scorer, error) {
	r.mu.RLock()
	factory, ok := r.wake[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: wake/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateVAD instantiates a voice-activity classifier using the factory
// registered under entry.Name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Classifier, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

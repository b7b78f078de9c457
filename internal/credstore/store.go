package credstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store хранит единственный токен сессии между запусками приложения.
// Недоступность хранилища при чтении трактуется как отсутствие токена,
// а не как ошибка: поток работы не прерывается.
type Store interface {
	// Set сохраняет токен, перезаписывая предыдущее значение.
	Set(token string) error
	// Get возвращает сохранённый токен либо ok=false, если его нет.
	Get() (token string, ok bool)
	// Clear удаляет сохранённый токен.
	Clear() error
}

// FileStore хранит токен в одном файле каталога приложения —
// настольный аналог localStorage: значение переживает перезапуски
// и удаляется только явным logout.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore создаёт файловое хранилище токена по указанному пути.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("token file path is empty")
	}
	return &FileStore{path: path}, nil
}

// Set записывает токен в файл с правами 0600.
func (s *FileStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token file %s: %w", s.path, err)
	}
	return nil
}

// Get читает токен из файла. Любая проблема чтения означает "токена нет".
func (s *FileStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", false
	}
	return token, true
}

// Clear удаляет файл токена. Отсутствие файла не является ошибкой.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file %s: %w", s.path, err)
	}
	return nil
}

// MemoryStore держит токен в памяти процесса. Используется в тестах и как
// запасной вариант, если файловое хранилище недоступно.
type MemoryStore struct {
	mu    sync.Mutex
	token string
	set   bool
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

func (s *MemoryStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set || s.token == "" {
		return "", false
	}
	return s.token, true
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.set = false
	return nil
}

package audio

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/vorbis"
)

// ClipLibrary decodes short announcer clips (<dir>/<name>.ogg) on first use
// and keeps them in memory. Missing clips are remembered and skipped.
type ClipLibrary struct {
	dir string

	mu      sync.Mutex
	clips   map[string]*beep.Buffer
	missing map[string]bool
}

// NewClipLibrary creates a library rooted at dir
func NewClipLibrary(dir string) *ClipLibrary {
	return &ClipLibrary{
		dir:     dir,
		clips:   make(map[string]*beep.Buffer),
		missing: make(map[string]bool),
	}
}

// Streamer returns a fresh reader over the named clip, or nil if the clip
// does not exist
func (l *ClipLibrary) Streamer(name string) beep.StreamSeeker {
	buf := l.buffer(name)
	if buf == nil {
		return nil
	}
	return buf.Streamer(0, buf.Len())
}

// Add registers an in-memory clip
func (l *ClipLibrary) Add(name string, buf *beep.Buffer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clips[name] = buf
	delete(l.missing, name)
}

// Len returns the number of decoded clips
func (l *ClipLibrary) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clips)
}

func (l *ClipLibrary) buffer(name string) *beep.Buffer {
	l.mu.Lock()
	defer l.mu.Unlock()

	if buf, ok := l.clips[name]; ok {
		return buf
	}
	if l.missing[name] || l.dir == "" {
		return nil
	}

	buf, err := l.decode(name)
	if err != nil {
		l.missing[name] = true
		if !os.IsNotExist(err) {
			log.Printf("⚠️ Clip %s unusable: %v", name, err)
		}
		return nil
	}
	l.clips[name] = buf
	return buf
}

func (l *ClipLibrary) decode(name string) (*beep.Buffer, error) {
	f, err := os.Open(filepath.Join(l.dir, name+".ogg"))
	if err != nil {
		return nil, err
	}
	streamer, format, err := vorbis.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(Format)
	buf.Append(toFormat(streamer, format))
	return buf, nil
}

package cache

import "sync"

// tagIndex is the reverse map from tag to the set of keys carrying it, plus
// the forward map from key to its tags so evictions can clean up. All access
// is mutex-guarded; the index is shared by concurrent in-flight requests.
type tagIndex struct {
	mu      sync.Mutex
	byTag   map[string]map[string]struct{}
	keyTags map[string][]string
}

func newTagIndex() *tagIndex {
	return &tagIndex{
		byTag:   make(map[string]map[string]struct{}),
		keyTags: make(map[string][]string),
	}
}

func (ti *tagIndex) add(key string, tags []string) {
	if len(tags) == 0 {
		return
	}
	ti.mu.Lock()
	defer ti.mu.Unlock()

	ti.removeLocked(key)
	ti.keyTags[key] = tags
	for _, tag := range tags {
		keys, ok := ti.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			ti.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

func (ti *tagIndex) remove(key string) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.removeLocked(key)
}

func (ti *tagIndex) removeLocked(key string) {
	for _, tag := range ti.keyTags[key] {
		if keys, ok := ti.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(ti.byTag, tag)
			}
		}
	}
	delete(ti.keyTags, key)
}

// take removes and returns every key under the named tags, clearing the tag
// entries themselves.
func (ti *tagIndex) take(tags []string) []string {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	var keys []string
	for _, tag := range tags {
		for key := range ti.byTag[tag] {
			keys = append(keys, key)
			ti.removeLocked(key)
		}
		delete(ti.byTag, tag)
	}
	return keys
}

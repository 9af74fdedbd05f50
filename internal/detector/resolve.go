package detector

import (
	"sort"
	"strings"
)

// classFilter is the outcome of resolving the configured class allow-list
// against the model's label table. When restricted is true decode only
// scores the listed label indices; otherwise decode is unrestricted and the
// name post-filter alone constrains the counts.
type classFilter struct {
	ids         map[int]struct{}
	names       map[string]struct{}
	indexByName map[string]int
	restricted  bool
}

// resolveClassFilter maps allow-list names to label indices. Matching is
// case-insensitive. When no name matches the label table the filter falls
// back to unrestricted decode so a misconfigured list degrades to empty
// counts instead of empty results by construction.
func resolveClassFilter(labels, classes []string) *classFilter {
	names := make(map[string]struct{}, len(classes))
	for _, class := range classes {
		class = strings.ToLower(strings.TrimSpace(class))
		if class != "" {
			names[class] = struct{}{}
		}
	}

	ids := make(map[int]struct{})
	indexByName := make(map[string]int, len(names))
	for i, label := range labels {
		if _, ok := names[strings.ToLower(label)]; ok {
			ids[i] = struct{}{}
			indexByName[strings.ToLower(label)] = i
		}
	}

	if len(ids) == 0 {
		return &classFilter{names: names, indexByName: indexByName}
	}
	return &classFilter{ids: ids, names: names, indexByName: indexByName, restricted: true}
}

// postFilter drops detections outside the allow-list. For restricted decode
// this is a no-op by construction.
func (cf *classFilter) postFilter(dets []Detection) []Detection {
	if cf.restricted {
		return dets
	}
	kept := dets[:0]
	for _, det := range dets {
		if _, ok := cf.names[det.Class]; ok {
			kept = append(kept, det)
		}
	}
	return kept
}

// classFilterCached returns the resolved allow-list, computing it at most
// once. Concurrent first callers share the winner's result via singleflight;
// later callers hit the RWMutex fast path.
func (d *Detector) classFilterCached() *classFilter {
	d.resolveMu.RLock()
	cached := d.resolved
	d.resolveMu.RUnlock()
	if cached != nil {
		return cached
	}

	v, _, _ := d.resolveGroup.Do("classes", func() (any, error) {
		d.resolveMu.RLock()
		cached := d.resolved
		d.resolveMu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		cf := resolveClassFilter(d.labels, d.Settings.Detector.Classes)
		if !cf.restricted {
			d.log.Warn("No configured class matches the label table, decoding unrestricted",
				"classes", d.Settings.Detector.Classes)
		} else {
			d.log.Debug("Resolved class allow-list",
				"classes", d.Settings.Detector.Classes,
				"matched", len(cf.ids))
		}

		d.resolveMu.Lock()
		d.resolved = cf
		d.resolveMu.Unlock()
		return cf, nil
	})
	return v.(*classFilter)
}

// ClassInfo describes one configured target class after label resolution.
type ClassInfo struct {
	Name       string `json:"name"`
	LabelIndex int    `json:"label_index"`
	Matched    bool   `json:"matched"`
}

// ResolveClasses reports each configured class with its resolved label
// index, -1 when the class is absent from the label table. The result is
// sorted by class name.
func (d *Detector) ResolveClasses() []ClassInfo {
	cf := d.classFilterCached()

	infos := make([]ClassInfo, 0, len(d.Settings.Detector.Classes))
	seen := make(map[string]struct{}, len(d.Settings.Detector.Classes))
	for _, class := range d.Settings.Detector.Classes {
		name := strings.ToLower(strings.TrimSpace(class))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		idx, ok := cf.indexByName[name]
		if !ok {
			idx = -1
		}
		infos = append(infos, ClassInfo{Name: name, LabelIndex: idx, Matched: ok})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

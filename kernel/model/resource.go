package model

// Tag is a single key/value annotation on a backend resource.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Filter is one clause of a backend search. Clauses are ANDed, values inside
// a clause are ORed.
type Filter struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// MachineImage is a provider-side image together with its tag set.
type MachineImage struct {
	Id   string `json:"id"`
	Tags []Tag  `json:"tags"`
}

func (m *MachineImage) Tag(key string) (string, bool) {
	for _, tag := range m.Tags {
		if tag.Key == key {
			return tag.Value, true
		}
	}
	return "", false
}

// ImportTask is the provider's view of an asynchronous disk import.
type ImportTask struct {
	Id            string
	Status        string
	StatusMessage string
	Progress      string
	ImageId       string
}

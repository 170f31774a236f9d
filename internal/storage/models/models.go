package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// PaperID is the canonical paper identifier. Upstream sources deliver ids as
// JSON strings or numbers; the type normalizes both at the decoding boundary so
// the rest of the system compares ids with plain equality.
type PaperID string

func (id *PaperID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*id = PaperID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = PaperID(n.String())
	return nil
}

func (id PaperID) String() string {
	return string(id)
}

// CoerceID converts any raw identifier value (string, int, float) to a PaperID.
func CoerceID(v interface{}) PaperID {
	switch t := v.(type) {
	case string:
		return PaperID(t)
	case PaperID:
		return t
	case int:
		return PaperID(strconv.Itoa(t))
	case int64:
		return PaperID(strconv.FormatInt(t, 10))
	case float64:
		return PaperID(strconv.FormatFloat(t, 'f', -1, 64))
	case json.Number:
		return PaperID(t.String())
	case nil:
		return ""
	default:
		return ""
	}
}

// Author tolerates both bare strings and {"name": ...} objects on the wire.
type Author struct {
	Name string `json:"name"`
}

func (a *Author) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Name = s
		return nil
	}
	var obj struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Name != "" {
		a.Name = obj.Name
	} else {
		a.Name = obj.DisplayName
	}
	return nil
}

type Paper struct {
	ID         PaperID  `json:"id"`
	AltID      PaperID  `json:"paper_id,omitempty"`
	DOI        string   `json:"doi,omitempty"`
	Title      string   `json:"title"`
	Name       string   `json:"name,omitempty"`
	Authors    []Author `json:"authors,omitempty"`
	Abstract   string   `json:"abstract,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	URL        string   `json:"url,omitempty"`
	Journal    string   `json:"journal,omitempty"`
	Volume     string   `json:"volume,omitempty"`
	Issue      string   `json:"issue,omitempty"`
	Pages      string   `json:"pages,omitempty"`
	Publisher  string   `json:"publisher,omitempty"`
	Year       int      `json:"year,omitempty"`
	Published  string   `json:"published,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	References []string `json:"references,omitempty"`
	Source     string   `json:"source,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Key derives the deduplication identity for a paper: id, else paper_id, else
// doi, else title. First present field wins.
func (p *Paper) Key() string {
	if p.ID != "" {
		return string(p.ID)
	}
	if p.AltID != "" {
		return string(p.AltID)
	}
	if p.DOI != "" {
		return p.DOI
	}
	return p.Title
}

// DisplayTitle resolves the label shown for a paper: title, else name, else id.
func (p *Paper) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	if p.Name != "" {
		return p.Name
	}
	return string(p.ID)
}

type Profile struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Email       string               `json:"email"`
	Institution string               `json:"institution"`
	Bio         string               `json:"bio"`
	Interests   []string             `json:"interests"`
	SavedPapers []Paper              `json:"saved_papers"`
	History     []SearchHistoryEntry `json:"search_history"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type SearchHistoryEntry struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// CompareRecord is the persisted audit row for a comparison request.
type CompareRecord struct {
	ID        string
	PaperIDs  []PaperID
	Mode      string
	LatencyMS int
	EdgeCount int
	Fallback  bool
	CreatedAt time.Time
}

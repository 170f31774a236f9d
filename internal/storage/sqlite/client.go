package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/pkg/logger"
)

type Client struct {
	db *sql.DB

	// fts records whether the FTS5 virtual table exists. go-sqlite3 only
	// compiles FTS5 behind the sqlite_fts5 build tag; without it keyword
	// search degrades to a LIKE scan.
	fts bool
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// InitSchema creates the tables. The FTS5 index is created separately and is
// optional: builds without the sqlite_fts5 tag keep working, with keyword
// search served by the LIKE fallback instead of bm25 ranking.
func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS papers (
		id TEXT PRIMARY KEY,
		doi TEXT,
		title TEXT NOT NULL,
		abstract TEXT,
		authors TEXT,
		url TEXT,
		journal TEXT,
		volume TEXT,
		issue TEXT,
		pages TEXT,
		publisher TEXT,
		year INTEGER,
		published TEXT,
		keywords TEXT,
		refs TEXT,
		source TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_papers_doi ON papers(doi);
	CREATE INDEX IF NOT EXISTS idx_papers_year ON papers(year);
	CREATE INDEX IF NOT EXISTS idx_papers_source ON papers(source);

	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		name TEXT,
		email TEXT,
		institution TEXT,
		bio TEXT,
		interests TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS saved_papers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id TEXT NOT NULL,
		paper_key TEXT NOT NULL,
		paper TEXT NOT NULL,
		saved_at INTEGER NOT NULL,
		UNIQUE(profile_id, paper_key),
		FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_saved_profile ON saved_papers(profile_id);

	CREATE TABLE IF NOT EXISTS search_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id TEXT NOT NULL,
		query TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_history_profile ON search_history(profile_id, created_at);

	CREATE TABLE IF NOT EXISTS compare_history (
		id TEXT PRIMARY KEY,
		paper_ids TEXT NOT NULL,
		mode TEXT,
		latency_ms INTEGER,
		edge_count INTEGER,
		fallback INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_compare_created ON compare_history(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	c.fts = true
	if err := c.initFTS(); err != nil {
		c.fts = false
		logger.Warn("FTS5 unavailable, keyword search degrades to LIKE scan",
			zap.Error(err),
		)
	}

	logger.Info("SQLite schema initialized", zap.Bool("fts", c.fts))
	return nil
}

func (c *Client) initFTS() error {
	ftsSchema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS papers_fts USING fts5(
		title, abstract, keywords,
		content='papers',
		content_rowid='rowid'
	);

	CREATE TRIGGER IF NOT EXISTS papers_ai AFTER INSERT ON papers BEGIN
		INSERT INTO papers_fts(rowid, title, abstract, keywords)
		VALUES (new.rowid, new.title, new.abstract, new.keywords);
	END;
	CREATE TRIGGER IF NOT EXISTS papers_ad AFTER DELETE ON papers BEGIN
		INSERT INTO papers_fts(papers_fts, rowid, title, abstract, keywords)
		VALUES ('delete', old.rowid, old.title, old.abstract, old.keywords);
	END;
	CREATE TRIGGER IF NOT EXISTS papers_au AFTER UPDATE ON papers BEGIN
		INSERT INTO papers_fts(papers_fts, rowid, title, abstract, keywords)
		VALUES ('delete', old.rowid, old.title, old.abstract, old.keywords);
		INSERT INTO papers_fts(rowid, title, abstract, keywords)
		VALUES (new.rowid, new.title, new.abstract, new.keywords);
	END;
	`

	_, err := c.db.Exec(ftsSchema)
	return err
}

func (c *Client) InsertPaper(p *models.Paper) error {
	authorsJSON, _ := json.Marshal(p.Authors)
	keywordsJSON, _ := json.Marshal(p.Keywords)
	refsJSON, _ := json.Marshal(p.References)

	query := `
		INSERT INTO papers (id, doi, title, abstract, authors, url, journal, volume, issue,
			pages, publisher, year, published, keywords, refs, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			abstract = excluded.abstract,
			authors = excluded.authors,
			keywords = excluded.keywords,
			refs = excluded.refs,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		string(p.ID),
		p.DOI,
		p.Title,
		p.Abstract,
		string(authorsJSON),
		p.URL,
		p.Journal,
		p.Volume,
		p.Issue,
		p.Pages,
		p.Publisher,
		p.Year,
		p.Published,
		string(keywordsJSON),
		string(refsJSON),
		p.Source,
		time.Now().Unix(),
		time.Now().Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert paper: %w", err)
	}

	logger.Debug("Paper inserted", zap.String("paper_id", string(p.ID)), zap.String("title", p.Title))
	return nil
}

const paperColumns = `id, doi, title, abstract, authors, url, journal, volume, issue,
	pages, publisher, year, published, keywords, refs, source`

// prefixedPaperColumns qualifies paperColumns with a table alias, for queries
// that join papers against tables sharing column names.
func prefixedPaperColumns(alias string) string {
	cols := strings.Split(paperColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

func scanPaper(scan func(dest ...interface{}) error) (*models.Paper, error) {
	var p models.Paper
	var id, authorsJSON, keywordsJSON, refsJSON string
	var doi, abstract, url, journal, volume, issue, pages, publisher, published, source sql.NullString
	var year sql.NullInt64

	err := scan(
		&id, &doi, &p.Title, &abstract, &authorsJSON, &url, &journal, &volume, &issue,
		&pages, &publisher, &year, &published, &keywordsJSON, &refsJSON, &source,
	)
	if err != nil {
		return nil, err
	}

	p.ID = models.PaperID(id)
	p.DOI = doi.String
	p.Abstract = abstract.String
	p.URL = url.String
	p.Journal = journal.String
	p.Volume = volume.String
	p.Issue = issue.String
	p.Pages = pages.String
	p.Publisher = publisher.String
	p.Published = published.String
	p.Source = source.String
	p.Year = int(year.Int64)

	json.Unmarshal([]byte(authorsJSON), &p.Authors)
	json.Unmarshal([]byte(keywordsJSON), &p.Keywords)
	json.Unmarshal([]byte(refsJSON), &p.References)

	return &p, nil
}

func (c *Client) GetPaper(id models.PaperID) (*models.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE id = ? OR doi = ?`

	row := c.db.QueryRow(query, string(id), string(id))
	p, err := scanPaper(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	return p, nil
}

// KeywordSearch matches papers over title, abstract and keywords, best match
// first. With FTS5 compiled in the ranking is bm25 with the title weighted
// highest; otherwise a LIKE scan with the same field weighting serves the
// query.
func (c *Client) KeywordSearch(queryText string, limit int) ([]models.Paper, error) {
	if !c.fts {
		return c.likeSearch(queryText, limit)
	}

	ftsQuery := escapeFTSQuery(queryText)
	if ftsQuery == "" {
		return nil, nil
	}

	query := `
		SELECT ` + prefixedPaperColumns("p") + `
		FROM papers p
		JOIN papers_fts f ON p.rowid = f.rowid
		WHERE papers_fts MATCH ?
		ORDER BY bm25(papers_fts, 3.0, 2.0, 1.0)
		LIMIT ?
	`

	rows, err := c.db.Query(query, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search papers: %w", err)
	}
	defer rows.Close()

	var papers []models.Paper
	for rows.Next() {
		p, err := scanPaper(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		papers = append(papers, *p)
	}

	return papers, nil
}

// likeSearch is the keyword path for builds without FTS5: every token must
// appear in some field, and matches are ranked with the same title-heavy
// weighting the bm25 query uses (title 3, keywords 2, abstract 1).
func (c *Client) likeSearch(queryText string, limit int) ([]models.Paper, error) {
	tokens := strings.Fields(strings.ToLower(queryText))
	if len(tokens) == 0 {
		return nil, nil
	}

	var where strings.Builder
	args := make([]interface{}, 0, len(tokens)*3)
	for i, tok := range tokens {
		if i > 0 {
			where.WriteString(" AND ")
		}
		where.WriteString(`(lower(title) LIKE ? ESCAPE '\' OR lower(abstract) LIKE ? ESCAPE '\' OR lower(keywords) LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(tok) + "%"
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + paperColumns + ` FROM papers WHERE ` + where.String()

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search papers: %w", err)
	}
	defer rows.Close()

	type scoredPaper struct {
		paper models.Paper
		score int
	}

	var matches []scoredPaper
	for rows.Next() {
		p, err := scanPaper(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		title := strings.ToLower(p.Title)
		abstract := strings.ToLower(p.Abstract)
		keywords := strings.ToLower(strings.Join(p.Keywords, " "))

		score := 0
		for _, tok := range tokens {
			if strings.Contains(title, tok) {
				score += 3
			}
			if strings.Contains(keywords, tok) {
				score += 2
			}
			if strings.Contains(abstract, tok) {
				score++
			}
		}

		matches = append(matches, scoredPaper{paper: *p, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	papers := make([]models.Paper, len(matches))
	for i, m := range matches {
		papers[i] = m.paper
	}
	return papers, nil
}

// CitingPapers returns papers whose stored reference list contains the id.
func (c *Client) CitingPapers(id models.PaperID, limit int) ([]models.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE refs LIKE ? LIMIT ?`

	rows, err := c.db.Query(query, `%"`+string(id)+`"%`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find citing papers: %w", err)
	}
	defer rows.Close()

	var papers []models.Paper
	for rows.Next() {
		p, err := scanPaper(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		papers = append(papers, *p)
	}

	return papers, nil
}

func (c *Client) GetProfile(id string) (*models.Profile, error) {
	query := `SELECT id, name, email, institution, bio, interests, created_at, updated_at FROM profiles WHERE id = ?`

	var p models.Profile
	var interestsJSON string
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, id).Scan(
		&p.ID, &p.Name, &p.Email, &p.Institution, &p.Bio, &interestsJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	json.Unmarshal([]byte(interestsJSON), &p.Interests)
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)

	saved, err := c.savedPapers(id)
	if err != nil {
		return nil, err
	}
	p.SavedPapers = saved

	history, err := c.searchHistory(id)
	if err != nil {
		return nil, err
	}
	p.History = history

	return &p, nil
}

func (c *Client) UpsertProfile(p *models.Profile) error {
	interestsJSON, _ := json.Marshal(p.Interests)

	query := `
		INSERT INTO profiles (id, name, email, institution, bio, interests, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			institution = excluded.institution,
			bio = excluded.bio,
			interests = excluded.interests,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		p.ID,
		p.Name,
		p.Email,
		p.Institution,
		p.Bio,
		string(interestsJSON),
		time.Now().Unix(),
		time.Now().Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	logger.Info("Profile saved", zap.String("profile_id", p.ID))
	return nil
}

func (c *Client) SavePaper(profileID string, p *models.Paper) error {
	paperJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal paper: %w", err)
	}

	query := `
		INSERT INTO saved_papers (profile_id, paper_key, paper, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(profile_id, paper_key) DO UPDATE SET paper = excluded.paper
	`

	_, err = c.db.Exec(query, profileID, p.Key(), string(paperJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save paper: %w", err)
	}

	return nil
}

func (c *Client) RemoveSavedPaper(profileID, paperKey string) error {
	_, err := c.db.Exec(`DELETE FROM saved_papers WHERE profile_id = ? AND paper_key = ?`, profileID, paperKey)
	if err != nil {
		return fmt.Errorf("failed to remove saved paper: %w", err)
	}
	return nil
}

func (c *Client) savedPapers(profileID string) ([]models.Paper, error) {
	rows, err := c.db.Query(
		`SELECT paper FROM saved_papers WHERE profile_id = ? ORDER BY saved_at ASC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get saved papers: %w", err)
	}
	defer rows.Close()

	var papers []models.Paper
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var p models.Paper
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		papers = append(papers, p)
	}

	return papers, nil
}

// TrendingSaved returns the papers saved by the most profiles.
func (c *Client) TrendingSaved(limit int) ([]models.Paper, error) {
	rows, err := c.db.Query(`
		SELECT paper, COUNT(*) AS saves
		FROM saved_papers
		GROUP BY paper_key
		ORDER BY saves DESC, MAX(saved_at) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get trending papers: %w", err)
	}
	defer rows.Close()

	var papers []models.Paper
	for rows.Next() {
		var raw string
		var saves int
		if err := rows.Scan(&raw, &saves); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var p models.Paper
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		papers = append(papers, p)
	}

	return papers, nil
}

func (c *Client) RecordSearch(profileID, queryText string) error {
	_, err := c.db.Exec(
		`INSERT INTO search_history (profile_id, query, created_at) VALUES (?, ?, ?)`,
		profileID, queryText, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

func (c *Client) searchHistory(profileID string) ([]models.SearchHistoryEntry, error) {
	rows, err := c.db.Query(
		`SELECT query, created_at FROM search_history WHERE profile_id = ? ORDER BY created_at ASC`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get search history: %w", err)
	}
	defer rows.Close()

	var entries []models.SearchHistoryEntry
	for rows.Next() {
		var e models.SearchHistoryEntry
		var createdAt int64
		if err := rows.Scan(&e.Query, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Timestamp = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}

	return entries, nil
}

func (c *Client) InsertCompareRecord(record *models.CompareRecord) error {
	ids := make([]string, len(record.PaperIDs))
	for i, id := range record.PaperIDs {
		ids[i] = string(id)
	}

	fallback := 0
	if record.Fallback {
		fallback = 1
	}

	_, err := c.db.Exec(
		`INSERT INTO compare_history (id, paper_ids, mode, latency_ms, edge_count, fallback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		strings.Join(ids, ","),
		record.Mode,
		record.LatencyMS,
		record.EdgeCount,
		fallback,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert compare record: %w", err)
	}

	logger.Info("Comparison recorded",
		zap.String("compare_id", record.ID),
		zap.Int("papers", len(record.PaperIDs)),
		zap.Int("latency_ms", record.LatencyMS),
	)

	return nil
}

// escapeFTSQuery quotes each token so FTS5 operators in user input are inert.
func escapeFTSQuery(queryText string) string {
	fields := strings.Fields(queryText)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// escapeLike neutralizes LIKE wildcards in a token, paired with ESCAPE '\'.
func escapeLike(tok string) string {
	tok = strings.ReplaceAll(tok, `\`, `\\`)
	tok = strings.ReplaceAll(tok, `%`, `\%`)
	tok = strings.ReplaceAll(tok, `_`, `\_`)
	return tok
}

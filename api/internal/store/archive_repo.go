// Package store persists analysis results. The pipeline never reads its
// own output back mid-run; this is a single-writer, last-result-wins store
// keyed by (source, page).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"homework-analyzer/api/internal/analysis"
)

var ErrNotFound = sql.ErrNoRows

// ArchiveRepo stores one row per analyzed page plus one row per saved
// answer.
//
// Schema:
//
//	create table analyzed_pages (
//	  source_id   text        not null,
//	  page        int         not null,
//	  result_json jsonb       not null,
//	  method      text        not null,
//	  image_hash  text        not null default '',
//	  analyzed_at timestamptz not null default now(),
//	  primary key (source_id, page)
//	);
//
//	create table page_answers (
//	  source_id  text  not null,
//	  page       int   not null,
//	  answer_key text  not null,
//	  data       bytea not null,
//	  primary key (source_id, page, answer_key)
//	);
type ArchiveRepo struct{ DB *sql.DB }

func NewArchiveRepo(db *sql.DB) *ArchiveRepo { return &ArchiveRepo{DB: db} }

// PageRow is one archived page as read back by callers.
type PageRow struct {
	SourceID   string
	Page       int
	Result     analysis.Result
	Method     string
	ImageHash  string
	AnalyzedAt time.Time
}

// UpsertPage stores a page's result, replacing only that page's entry.
// Answers attached to a replaced entry are dropped: re-analysis changes
// positions and numbers, which invalidates the old answer keys.
func (r *ArchiveRepo) UpsertPage(ctx context.Context, sourceID string, page int, res analysis.Result, method, imageHash string) error {
	js, err := json.Marshal(res)
	if err != nil {
		return err
	}
	const q = `
insert into analyzed_pages (source_id, page, result_json, method, image_hash, analyzed_at)
values ($1,$2,$3,$4,$5,now())
on conflict (source_id, page) do update
set result_json = excluded.result_json,
    method      = excluded.method,
    image_hash  = excluded.image_hash,
    analyzed_at = excluded.analyzed_at`
	if _, err := r.DB.ExecContext(ctx, q, sourceID, page, js, method, imageHash); err != nil {
		return err
	}
	const del = `delete from page_answers where source_id = $1 and page = $2`
	_, err = r.DB.ExecContext(ctx, del, sourceID, page)
	return err
}

// FindPage fetches one page's entry.
func (r *ArchiveRepo) FindPage(ctx context.Context, sourceID string, page int) (*PageRow, error) {
	const q = `
select result_json, method, coalesce(image_hash,''), analyzed_at
from analyzed_pages
where source_id = $1 and page = $2`
	row := r.DB.QueryRowContext(ctx, q, sourceID, page)

	var (
		js        []byte
		method    string
		imageHash string
		ts        time.Time
	)
	if err := row.Scan(&js, &method, &imageHash, &ts); err != nil {
		return nil, err
	}
	var res analysis.Result
	if err := json.Unmarshal(js, &res); err != nil {
		// broken JSON in the row counts as not found
		return nil, ErrNotFound
	}
	return &PageRow{
		SourceID:   sourceID,
		Page:       page,
		Result:     res,
		Method:     method,
		ImageHash:  imageHash,
		AnalyzedAt: ts,
	}, nil
}

// Pages lists the archived page numbers for a source, ascending.
func (r *ArchiveRepo) Pages(ctx context.Context, sourceID string) ([]int, error) {
	const q = `select page from analyzed_pages where source_id = $1 order by page`
	rows, err := r.DB.QueryContext(ctx, q, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveAnswer upserts one answer blob for an archived page.
func (r *ArchiveRepo) SaveAnswer(ctx context.Context, sourceID string, page int, key string, data []byte) error {
	const q = `
insert into page_answers (source_id, page, answer_key, data)
values ($1,$2,$3,$4)
on conflict (source_id, page, answer_key) do update
set data = excluded.data`
	_, err := r.DB.ExecContext(ctx, q, sourceID, page, key, data)
	return err
}

// Answers fetches all stored answers for a page, keyed by answer key.
func (r *ArchiveRepo) Answers(ctx context.Context, sourceID string, page int) (map[string][]byte, error) {
	const q = `select answer_key, data from page_answers where source_id = $1 and page = $2`
	rows, err := r.DB.QueryContext(ctx, q, sourceID, page)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]byte)
	for rows.Next() {
		var (
			k string
			d []byte
		)
		if err := rows.Scan(&k, &d); err != nil {
			return nil, err
		}
		out[k] = d
	}
	return out, rows.Err()
}

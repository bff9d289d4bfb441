package content

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/platform/db"
	"github.com/classboard/classboard/internal/shared"
)

// Repository defines persistence operations for content.
type Repository interface {
	Create(ctx context.Context, item Item) error
	Get(ctx context.Context, id string) (Item, error)
	Feed(ctx context.Context, filter FeedFilter) ([]Item, error)
	Comments(ctx context.Context, parentID string) ([]Item, error)
	Update(ctx context.Context, item Item) error
	Delete(ctx context.Context, id string) error
	// UpsertVote records identityID's choice, replacing any earlier vote.
	UpsertVote(ctx context.Context, pollID, identityID, optionID string) error
	ToggleLike(ctx context.Context, postID, identityID string) (Toggle, error)
	ToggleParticipation(ctx context.Context, eventID, identityID string) (Toggle, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const itemColumns = `
	c.id, c.kind, c.author_id, c.class_id, c.parent_id, c.title, c.body,
	c.starts_at, c.ends_at, c.location, c.closes_at, c.hidden, c.hidden_by,
	(SELECT COUNT(*) FROM post_likes l WHERE l.post_id = c.id),
	(SELECT COUNT(*) FROM event_participants p WHERE p.event_id = c.id),
	c.created_at, c.updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var (
		it                         Item
		kind                       string
		classID, parentID, hidBy   pgtype.Text
		startsAt, endsAt, closesAt pgtype.Timestamptz
	)
	err := row.Scan(&it.ID, &kind, &it.AuthorID, &classID, &parentID, &it.Title, &it.Body,
		&startsAt, &endsAt, &it.Location, &closesAt, &it.Hidden, &hidBy,
		&it.Likes, &it.Participants, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	it.Kind = access.Kind(kind)
	it.ClassID = classID.String
	it.ParentID = parentID.String
	it.HiddenBy = hidBy.String
	it.StartsAt = timePtr(startsAt)
	it.EndsAt = timePtr(endsAt)
	it.ClosesAt = timePtr(closesAt)
	return it, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// Create inserts an item and, for polls, its options in one transaction.
func (r *PGRepository) Create(ctx context.Context, item Item) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO content_items
				(id, kind, author_id, class_id, parent_id, title, body, starts_at, ends_at, location, closes_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
			item.ID, string(item.Kind), item.AuthorID, text(item.ClassID), text(item.ParentID),
			item.Title, item.Body, timestamptz(item.StartsAt), timestamptz(item.EndsAt),
			item.Location, timestamptz(item.ClosesAt), item.CreatedAt)
		if err != nil {
			return db.MapError(err)
		}
		if len(item.Options) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, opt := range item.Options {
			batch.Queue(`INSERT INTO poll_options (id, poll_id, label, position) VALUES ($1, $2, $3, $4)`,
				opt.ID, item.ID, opt.Label, opt.Position)
		}
		return db.MapError(tx.SendBatch(ctx, batch).Close())
	})
	if err != nil {
		return fmt.Errorf("content: create: %w", err)
	}
	return nil
}

// Get fetches an item with poll options.
func (r *PGRepository) Get(ctx context.Context, id string) (Item, error) {
	it, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM content_items c WHERE c.id = $1`, id))
	if err != nil {
		return Item{}, fmt.Errorf("content: get %s: %w", id, db.MapError(err))
	}
	items := []Item{it}
	if err := r.attachOptions(ctx, items); err != nil {
		return Item{}, err
	}
	return items[0], nil
}

// Feed lists top-level items matching filter, newest first.
func (r *PGRepository) Feed(ctx context.Context, f FeedFilter) ([]Item, error) {
	classIDs := f.ClassIDs
	if classIDs == nil {
		classIDs = []string{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM content_items c
		WHERE c.parent_id IS NULL
		  AND ($1 = '' OR c.kind = $1)
		  AND ($2 OR c.hidden = FALSE)
		  AND (($3 AND c.class_id IS NULL) OR c.class_id = ANY($4) OR ($5 AND c.class_id IS NOT NULL))
		ORDER BY c.created_at DESC, c.id
		LIMIT $6 OFFSET $7`,
		string(f.Kind), f.IncludeHidden, f.IncludeSchool, classIDs, f.AllClasses, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("content: feed: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachOptions(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Comments lists the comments of parentID, oldest first.
func (r *PGRepository) Comments(ctx context.Context, parentID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM content_items c
		WHERE c.parent_id = $1
		ORDER BY c.created_at, c.id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("content: comments: %w", err)
	}
	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("content: scan: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("content: rows: %w", err)
	}
	return items, nil
}

func (r *PGRepository) attachOptions(ctx context.Context, items []Item) error {
	var pollIDs []string
	index := make(map[string]int)
	for i, it := range items {
		if it.Kind == access.KindPoll {
			pollIDs = append(pollIDs, it.ID)
			index[it.ID] = i
		}
	}
	if len(pollIDs) == 0 {
		return nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.poll_id, o.label, o.position, COUNT(v.identity_id)
		FROM poll_options o
		LEFT JOIN poll_votes v ON v.option_id = o.id
		WHERE o.poll_id = ANY($1)
		GROUP BY o.id, o.poll_id, o.label, o.position
		ORDER BY o.poll_id, o.position`, pollIDs)
	if err != nil {
		return fmt.Errorf("content: poll options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var opt PollOption
		if err := rows.Scan(&opt.ID, &opt.PollID, &opt.Label, &opt.Position, &opt.Votes); err != nil {
			return fmt.Errorf("content: scan option: %w", err)
		}
		i := index[opt.PollID]
		items[i].Options = append(items[i].Options, opt)
	}
	return rows.Err()
}

// Update persists edited fields.
func (r *PGRepository) Update(ctx context.Context, item Item) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE content_items
		SET title = $2, body = $3, starts_at = $4, ends_at = $5, location = $6, closes_at = $7, updated_at = $8
		WHERE id = $1`,
		item.ID, item.Title, item.Body, timestamptz(item.StartsAt), timestamptz(item.EndsAt),
		item.Location, timestamptz(item.ClosesAt), item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("content: update: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("content: update %s: %w", item.ID, shared.ErrNotFound)
	}
	return nil
}

// Delete removes an item; comments, options, votes, likes and reports cascade.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("content: delete: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("content: delete %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// UpsertVote relies on the (poll_id, identity_id) primary key so concurrent
// votes from one identity converge on a single row.
func (r *PGRepository) UpsertVote(ctx context.Context, pollID, identityID, optionID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO poll_votes (poll_id, identity_id, option_id, voted_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (poll_id, identity_id)
		DO UPDATE SET option_id = EXCLUDED.option_id, voted_at = EXCLUDED.voted_at`,
		pollID, identityID, optionID)
	if err != nil {
		return fmt.Errorf("content: vote: %w", db.MapError(err))
	}
	return nil
}

// ToggleLike flips identityID's like on postID.
func (r *PGRepository) ToggleLike(ctx context.Context, postID, identityID string) (Toggle, error) {
	return r.toggle(ctx, "post_likes", "post_id", postID, identityID)
}

// ToggleParticipation flips identityID's participation in eventID.
func (r *PGRepository) ToggleParticipation(ctx context.Context, eventID, identityID string) (Toggle, error) {
	return r.toggle(ctx, "event_participants", "event_id", eventID, identityID)
}

// toggle deletes the row if present and otherwise inserts it with
// ON CONFLICT DO NOTHING, so racing toggles never produce duplicates.
func (r *PGRepository) toggle(ctx context.Context, table, column, entityID, identityID string) (Toggle, error) {
	var out Toggle
	err := db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND identity_id = $2`, table, column), entityID, identityID)
		if err != nil {
			return db.MapError(err)
		}
		if tag.RowsAffected() == 0 {
			_, err = tx.Exec(ctx, fmt.Sprintf(`
				INSERT INTO %s (%s, identity_id) VALUES ($1, $2)
				ON CONFLICT (%s, identity_id) DO NOTHING`, table, column, column), entityID, identityID)
			if err != nil {
				return db.MapError(err)
			}
			out.Active = true
		}
		return tx.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, table, column), entityID).Scan(&out.Count)
	})
	if err != nil {
		return Toggle{}, fmt.Errorf("content: toggle %s: %w", table, err)
	}
	return out, nil
}

var _ Repository = (*PGRepository)(nil)

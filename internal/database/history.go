// history.go stores finished videos and scheduled posts so they outlive the
// in-memory session that produced them.
package database

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

// SaveVideo records a completed job. A job that completes again after a retry
// overwrites its earlier row.
func (db *DB) SaveVideo(ctx context.Context, rec pipeline.VideoRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO video_history (user_id, session_id, job_id, idea_id, title, model, output_url, credits_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id, job_id) DO UPDATE
		SET output_url = EXCLUDED.output_url, credits_used = EXCLUDED.credits_used, created_at = EXCLUDED.created_at`,
		rec.UserID, rec.SessionID, rec.JobID, rec.IdeaID, rec.Title, rec.Model, rec.OutputURL, rec.CreditsUsed, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save video: %w", err)
	}
	return nil
}

// ListVideos returns one page of the user's videos, newest first.
func (db *DB) ListVideos(ctx context.Context, userID string, p models.ListParams) ([]pipeline.VideoRecord, int, error) {
	p = p.Normalize()

	var total int
	if err := db.GetContext(ctx, &total, `SELECT COUNT(*) FROM video_history WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count videos: %w", err)
	}

	var videos []pipeline.VideoRecord
	err := db.SelectContext(ctx, &videos,
		`SELECT id, user_id, session_id, job_id, idea_id, title, model, output_url, credits_used, created_at
		 FROM video_history WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list videos: %w", err)
	}
	return videos, total, nil
}

// SavePost inserts a scheduled post.
//
// Go Pattern: pq.Array adapts Go slices to PostgreSQL arrays in both
// directions, which sqlx's struct scanning can't do on its own.
func (db *DB) SavePost(ctx context.Context, userID string, post pipeline.ScheduledPost) error {
	platforms := make([]string, len(post.Platforms))
	for i, p := range post.Platforms {
		platforms[i] = string(p)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO scheduled_posts
			(id, user_id, workflow_id, job_id, platforms, caption, hashtags, scheduled_at, timezone, status, credits_charged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		post.ID, userID, post.WorkflowID, post.JobID, pq.Array(platforms), post.Caption, pq.Array(post.Hashtags),
		post.ScheduledAt, post.Timezone, post.Status, post.CreditsCharged, post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save post: %w", err)
	}
	return nil
}

// UpdatePostStatus moves a post to status.
func (db *DB) UpdatePostStatus(ctx context.Context, postID string, status pipeline.PostStatus) error {
	result, err := db.ExecContext(ctx,
		`UPDATE scheduled_posts SET status = $2, updated_at = NOW() WHERE id = $1`, postID, status)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("post %s not found", postID)
	}
	return nil
}

// ListPosts returns one page of the user's posts ordered by publish time.
func (db *DB) ListPosts(ctx context.Context, userID string, p models.ListParams) ([]pipeline.ScheduledPost, int, error) {
	p = p.Normalize()

	var total int
	if err := db.GetContext(ctx, &total, `SELECT COUNT(*) FROM scheduled_posts WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, workflow_id, job_id, platforms, caption, hashtags, scheduled_at, timezone, status, credits_charged, created_at
		FROM scheduled_posts WHERE user_id = $1
		ORDER BY scheduled_at DESC LIMIT $2 OFFSET $3`,
		userID, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []pipeline.ScheduledPost
	for rows.Next() {
		var (
			post      pipeline.ScheduledPost
			platforms []string
		)
		if err := rows.Scan(&post.ID, &post.WorkflowID, &post.JobID, pq.Array(&platforms), &post.Caption,
			pq.Array(&post.Hashtags), &post.ScheduledAt, &post.Timezone, &post.Status, &post.CreditsCharged, &post.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}
		for _, p := range platforms {
			post.Platforms = append(post.Platforms, pipeline.Platform(p))
		}
		posts = append(posts, post)
	}
	return posts, total, rows.Err()
}

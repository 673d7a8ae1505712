package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ad/go-telegram-onboarding/internal/fsm"
	"github.com/ad/go-telegram-onboarding/internal/models"
)

// ProgressRepository is the sqlite progress store.
type ProgressRepository struct {
	queue *DBQueue
	now   func() time.Time
}

func NewProgressRepository(queue *DBQueue) *ProgressRepository {
	return &ProgressRepository{queue: queue, now: time.Now}
}

func (r *ProgressRepository) Get(ctx context.Context, id int64) (*models.UserProgress, error) {
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		row := db.QueryRowContext(ctx, `
			SELECT id, display_name, handle, current_step, steps_completed, social_handles, wallet_address, created_at, updated_at
			FROM user_progress WHERE id = ?
		`, id)

		var progress models.UserProgress
		var stepsJSON, handlesJSON string
		var wallet sql.NullString
		err := row.Scan(&progress.UserID, &progress.DisplayName, &progress.Handle, &progress.CurrentStep,
			&stepsJSON, &handlesJSON, &wallet, &progress.CreatedAt, &progress.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		progress.WalletAddress = wallet.String

		progress.StepsCompleted = map[int]bool{}
		if err := json.Unmarshal([]byte(stepsJSON), &progress.StepsCompleted); err != nil {
			return nil, fmt.Errorf("decode steps_completed: %w", err)
		}
		progress.SocialHandles = map[models.SocialPlatform]string{}
		if err := json.Unmarshal([]byte(handlesJSON), &progress.SocialHandles); err != nil {
			return nil, fmt.Errorf("decode social_handles: %w", err)
		}

		screenshots, err := r.loadScreenshots(ctx, db, id)
		if err != nil {
			return nil, err
		}
		progress.Screenshots = screenshots
		return &progress, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.UserProgress), nil
}

func (r *ProgressRepository) loadScreenshots(ctx context.Context, db *sql.DB, userID int64) ([]models.Screenshot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT asset_id, file_name, uploaded_at
		FROM user_screenshots WHERE user_id = ? ORDER BY id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	screenshots := []models.Screenshot{}
	for rows.Next() {
		var s models.Screenshot
		if err := rows.Scan(&s.AssetID, &s.FileName, &s.UploadedAt); err != nil {
			return nil, err
		}
		screenshots = append(screenshots, s)
	}
	return screenshots, rows.Err()
}

// Create inserts a fresh record. It reports false without error when the
// record already exists.
func (r *ProgressRepository) Create(ctx context.Context, id int64, displayName, handle string) (bool, error) {
	now := r.now()
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		res, err := db.ExecContext(ctx, `
			INSERT INTO user_progress (id, display_name, handle, current_step, steps_completed, social_handles, created_at, updated_at)
			VALUES (?, ?, ?, ?, '{}', '{}', ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, id, displayName, handle, fsm.StepDownloadApp, now, now)
		if err != nil {
			return false, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		return affected > 0, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (r *ProgressRepository) AdvanceStep(ctx context.Context, id int64, step int, completed bool) error {
	return r.applyStep(ctx, id, models.StepChange{Step: step, Completed: completed}, false)
}

// ApplyStep applies a change only while the stored current step equals
// change.Step, returning ErrStepConflict otherwise.
func (r *ProgressRepository) ApplyStep(ctx context.Context, id int64, change models.StepChange) error {
	return r.applyStep(ctx, id, change, true)
}

func (r *ProgressRepository) applyStep(ctx context.Context, id int64, change models.StepChange, conditional bool) error {
	nextStep := change.Step
	if change.Completed {
		nextStep = change.Step + 1
	}

	sets := []string{
		"current_step = ?",
		"steps_completed = json_set(steps_completed, ?, json(?))",
		"updated_at = ?",
	}
	args := []interface{}{nextStep, stepPath(change.Step), jsonBool(change.Completed), r.now()}

	if change.Platform != "" {
		sets = append(sets, "social_handles = json_set(social_handles, ?, ?)")
		args = append(args, platformPath(change.Platform), change.Handle)
	}
	if change.WalletAddress != "" {
		sets = append(sets, "wallet_address = ?")
		args = append(args, change.WalletAddress)
	}

	query := "UPDATE user_progress SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	if conditional {
		query += " AND current_step = ?"
		args = append(args, change.Step)
	}

	return r.update(ctx, id, conditional, query, args...)
}

func (r *ProgressRepository) SetSocialHandle(ctx context.Context, id int64, platform models.SocialPlatform, value string) error {
	if !platform.IsValid() {
		return fmt.Errorf("unknown social platform %q", platform)
	}
	return r.update(ctx, id, false, `
		UPDATE user_progress SET social_handles = json_set(social_handles, ?, ?), updated_at = ?
		WHERE id = ?
	`, platformPath(platform), value, r.now(), id)
}

func (r *ProgressRepository) SetWalletAddress(ctx context.Context, id int64, value string) error {
	return r.update(ctx, id, false, `
		UPDATE user_progress SET wallet_address = ?, updated_at = ? WHERE id = ?
	`, value, r.now(), id)
}

func (r *ProgressRepository) AppendScreenshot(ctx context.Context, id int64, assetID, fileName string) error {
	now := r.now()
	_, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `UPDATE user_progress SET updated_at = ? WHERE id = ?`, now, id)
		if err != nil {
			return nil, err
		}
		if affected, err := res.RowsAffected(); err != nil {
			return nil, err
		} else if affected == 0 {
			return nil, ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_screenshots (user_id, asset_id, file_name, uploaded_at)
			VALUES (?, ?, ?, ?)
		`, id, assetID, fileName, now); err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	})
	return err
}

// Reset returns the user to the first step. Screenshots are kept.
func (r *ProgressRepository) Reset(ctx context.Context, id int64) error {
	return r.update(ctx, id, false, `
		UPDATE user_progress SET
			current_step = ?,
			steps_completed = '{}',
			social_handles = '{}',
			wallet_address = NULL,
			updated_at = ?
		WHERE id = ?
	`, fsm.StepDownloadApp, r.now(), id)
}

func (r *ProgressRepository) Stats(ctx context.Context) (*models.Stats, error) {
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		var total, completed int64
		err := db.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(SUM(CASE WHEN current_step >= ? THEN 1 ELSE 0 END), 0)
			FROM user_progress
		`, fsm.StepComplete).Scan(&total, &completed)
		if err != nil {
			return nil, err
		}
		return models.NewStats(total, completed), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Stats), nil
}

// update runs a single-row UPDATE and maps "no row matched" to ErrNotFound,
// or to ErrStepConflict for conditional updates on an existing row.
func (r *ProgressRepository) update(ctx context.Context, id int64, conditional bool, query string, args ...interface{}) error {
	_, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected > 0 {
			return nil, nil
		}
		if !conditional {
			return nil, ErrNotFound
		}

		var exists int
		err = db.QueryRowContext(ctx, `SELECT 1 FROM user_progress WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrStepConflict
	})
	return err
}

func stepPath(step int) string {
	return fmt.Sprintf(`$."%d"`, step)
}

func platformPath(platform models.SocialPlatform) string {
	return fmt.Sprintf(`$."%s"`, platform)
}

func jsonBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

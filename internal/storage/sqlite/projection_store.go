package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/multiviewc/internal/bbox"
	"github.com/banshee-data/multiviewc/internal/pipeline"
	"github.com/banshee-data/multiviewc/internal/timeutil"
)

// ProjectionRun identifies one projected frame.
type ProjectionRun struct {
	RunID        string `json:"run_id"`
	FrameIndex   int    `json:"frame_index"`
	Source       string `json:"source,omitempty"`
	BehindPolicy string `json:"behind_policy"`
	CreatedAtNs  int64  `json:"created_at_ns"`
}

// BoxRecord is one stored object projection.
type BoxRecord struct {
	RunID       string          `json:"run_id"`
	Camera      int             `json:"camera"`
	ObjectIndex int             `json:"object_index"`
	ObjectID    string          `json:"object_id"`
	Action      string          `json:"action,omitempty"`
	Status      pipeline.Status `json:"status"`
	Error       string          `json:"error,omitempty"`
	HeadingDeg  float64         `json:"heading_deg"`
	Rect        *bbox.Rect4     `json:"rect,omitempty"`
	Corners     []bbox.Point2   `json:"corners,omitempty"`
}

// ErrRunNotFound is returned when a run ID has no stored run.
var ErrRunNotFound = errors.New("projection run not found")

// ProjectionStore provides persistence for projection runs.
type ProjectionStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewProjectionStore creates a new ProjectionStore.
func NewProjectionStore(db *sql.DB) *ProjectionStore {
	return &ProjectionStore{db: db, clock: timeutil.RealClock{}}
}

// SetClock replaces the clock used to stamp new runs.
func (s *ProjectionStore) SetClock(c timeutil.Clock) {
	s.clock = c
}

// RecordFrame stores a frame result and all of its per-object and
// per-camera outcomes in one transaction. If run.RunID is empty a new UUID
// is generated; if CreatedAtNs is zero the current time is used.
func (s *ProjectionStore) RecordFrame(run *ProjectionRun, res *pipeline.FrameResult) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAtNs == 0 {
		run.CreatedAtNs = s.clock.Now().UnixNano()
	}
	run.FrameIndex = res.Index

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin projection run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO projection_runs (run_id, frame_index, source, behind_policy, created_at_ns)
		VALUES (?, ?, ?, ?, ?)
	`, run.RunID, run.FrameIndex, nullString(run.Source), run.BehindPolicy, run.CreatedAtNs)
	if err != nil {
		return fmt.Errorf("insert projection run: %w", err)
	}

	boxStmt, err := tx.Prepare(`
		INSERT INTO projected_boxes (
			run_id, camera, object_index, object_id, action, status, error,
			heading_deg, xmin, ymin, xmax, ymax, corners_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare projected box insert: %w", err)
	}
	defer boxStmt.Close()

	for _, cam := range res.Cameras {
		if cam.Err != nil {
			if _, err := tx.Exec(`INSERT INTO camera_failures (run_id, camera, error) VALUES (?, ?, ?)`,
				run.RunID, cam.Camera, cam.Err.Error()); err != nil {
				return fmt.Errorf("insert camera failure: %w", err)
			}
			continue
		}
		for _, o := range cam.Objects {
			var xmin, ymin, xmax, ymax sql.NullFloat64
			var corners sql.NullString
			if o.OK() {
				xmin = sql.NullFloat64{Float64: o.Rect.XMin, Valid: true}
				ymin = sql.NullFloat64{Float64: o.Rect.YMin, Valid: true}
				xmax = sql.NullFloat64{Float64: o.Rect.XMax, Valid: true}
				ymax = sql.NullFloat64{Float64: o.Rect.YMax, Valid: true}
				data, err := json.Marshal(o.Corners)
				if err != nil {
					return fmt.Errorf("encode corners: %w", err)
				}
				corners = sql.NullString{String: string(data), Valid: true}
			}
			var errText string
			if o.Err != nil {
				errText = o.Err.Error()
			}
			_, err := boxStmt.Exec(
				run.RunID, cam.Camera, o.ObjectIndex, o.ID, nullString(o.Action),
				string(o.Status()), nullString(errText), o.HeadingDeg,
				xmin, ymin, xmax, ymax, corners,
			)
			if err != nil {
				return fmt.Errorf("insert projected box: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit projection run: %w", err)
	}
	return nil
}

// GetRun returns a stored run.
func (s *ProjectionStore) GetRun(runID string) (*ProjectionRun, error) {
	r := &ProjectionRun{}
	var source sql.NullString
	err := s.db.QueryRow(`
		SELECT run_id, frame_index, source, behind_policy, created_at_ns
		FROM projection_runs WHERE run_id = ?
	`, runID).Scan(&r.RunID, &r.FrameIndex, &source, &r.BehindPolicy, &r.CreatedAtNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get projection run: %w", err)
	}
	if source.Valid {
		r.Source = source.String
	}
	return r, nil
}

// ListBoxes returns a run's stored boxes ordered by camera and object.
func (s *ProjectionStore) ListBoxes(runID string) ([]*BoxRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, camera, object_index, object_id, action, status, error,
		       heading_deg, xmin, ymin, xmax, ymax, corners_json
		FROM projected_boxes
		WHERE run_id = ?
		ORDER BY camera, object_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list projected boxes: %w", err)
	}
	defer rows.Close()

	var out []*BoxRecord
	for rows.Next() {
		b := &BoxRecord{}
		var action, errText, corners sql.NullString
		var status string
		var xmin, ymin, xmax, ymax sql.NullFloat64
		if err := rows.Scan(
			&b.RunID, &b.Camera, &b.ObjectIndex, &b.ObjectID, &action, &status, &errText,
			&b.HeadingDeg, &xmin, &ymin, &xmax, &ymax, &corners,
		); err != nil {
			return nil, fmt.Errorf("scan projected box: %w", err)
		}
		b.Status = pipeline.Status(status)
		if action.Valid {
			b.Action = action.String
		}
		if errText.Valid {
			b.Error = errText.String
		}
		if xmin.Valid && ymin.Valid && xmax.Valid && ymax.Valid {
			b.Rect = &bbox.Rect4{XMin: xmin.Float64, YMin: ymin.Float64, XMax: xmax.Float64, YMax: ymax.Float64}
		}
		if corners.Valid {
			if err := json.Unmarshal([]byte(corners.String), &b.Corners); err != nil {
				return nil, fmt.Errorf("decode corners for %s: %w", b.ObjectID, err)
			}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListCameraFailures returns the calibration errors recorded for a run,
// keyed by camera.
func (s *ProjectionStore) ListCameraFailures(runID string) (map[int]string, error) {
	rows, err := s.db.Query(`SELECT camera, error FROM camera_failures WHERE run_id = ? ORDER BY camera`, runID)
	if err != nil {
		return nil, fmt.Errorf("list camera failures: %w", err)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var cam int
		var msg string
		if err := rows.Scan(&cam, &msg); err != nil {
			return nil, fmt.Errorf("scan camera failure: %w", err)
		}
		out[cam] = msg
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, via cascade, its boxes and failures.
func (s *ProjectionStore) DeleteRun(runID string) error {
	res, err := s.db.Exec(`DELETE FROM projection_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete projection run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

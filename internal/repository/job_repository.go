package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/laburoapp/laburo-backend/internal/models"
)

// JobRepository отвечает за работу с заданиями и откликами.
type JobRepository struct {
	db *sqlx.DB
}

// Ошибки уровня репозитория.
var (
	ErrJobNotFound       = errors.New("job not found")
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrDuplicateProposal = errors.New("active proposal already exists for this job")
)

// NewJobRepository создаёт новый экземпляр.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Агрегаты по контрактам задания. Отменённые контракты не считаются:
// их доля возвращается в остаток бюджета.
const jobAggregatesJoin = `
	LEFT JOIN (
		SELECT job_id,
		       SUM(COALESCE(allocated_amount, price)) AS allocated_total,
		       COUNT(*) AS workers_assigned
		FROM contracts
		WHERE status <> 'cancelled'
		GROUP BY job_id
	) agg ON agg.job_id = j.id
	LEFT JOIN (
		SELECT job_id, COUNT(*) AS proposals_count
		FROM proposals
		GROUP BY job_id
	) pc ON pc.job_id = j.id
`

type jobWithAggregates struct {
	models.Job
	AllocatedTotal  float64 `db:"allocated_total"`
	WorkersAssigned int     `db:"workers_assigned"`
	ProposalsCount  int     `db:"proposals_count"`
}

func (jw *jobWithAggregates) toJob() models.Job {
	job := jw.Job
	allocated := models.Round2(jw.AllocatedTotal)
	remaining := models.Round2(job.Budget - allocated)
	workers := jw.WorkersAssigned
	proposals := jw.ProposalsCount
	job.AllocatedTotal = &allocated
	job.WorkersAssigned = &workers
	job.RemainingBudget = &remaining
	job.ProposalsCount = &proposals
	return job
}

// GetByID возвращает задание с агрегатами по бюджету.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `
		SELECT j.id, j.client_id, j.title, j.description, j.budget, j.status, j.max_workers, j.created_at, j.updated_at,
		       COALESCE(agg.allocated_total, 0) AS allocated_total,
		       COALESCE(agg.workers_assigned, 0) AS workers_assigned,
		       COALESCE(pc.proposals_count, 0) AS proposals_count
		FROM jobs j
	` + jobAggregatesJoin + `
		WHERE j.id = $1
	`

	var jw jobWithAggregates
	if err := r.db.GetContext(ctx, &jw, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job repository: get by id %w", err)
	}

	job := jw.toJob()
	return &job, nil
}

// Create сохраняет новое задание.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (client_id, title, description, budget, status, max_workers)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		job.ClientID,
		job.Title,
		job.Description,
		job.Budget,
		job.Status,
		job.MaxWorkers,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("job repository: create %w", err)
	}

	return nil
}

// Update изменяет редактируемые поля задания. Ограничение на статусы,
// в которых допустима правка, проверяет сервис.
func (r *JobRepository) Update(ctx context.Context, job *models.Job) error {
	query := `
		UPDATE jobs
		SET title = $1,
		    description = $2,
		    budget = $3,
		    max_workers = $4,
		    updated_at = NOW()
		WHERE id = $5 AND client_id = $6
		RETURNING updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		job.Title,
		job.Description,
		job.Budget,
		job.MaxWorkers,
		job.ID,
		job.ClientID,
	).Scan(&job.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrJobNotFound
		}
		return fmt.Errorf("job repository: update %w", err)
	}

	return nil
}

// UpdateStatus меняет статус задания.
func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Job, error) {
	query := `
		UPDATE jobs
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, client_id, title, description, budget, status, max_workers, created_at, updated_at
	`

	var job models.Job
	if err := r.db.QueryRowxContext(ctx, query, id, status).StructScan(&job); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job repository: update status %w", err)
	}

	return &job, nil
}

// JobListFilterParams содержит параметры фильтрации и поиска заданий.
type JobListFilterParams struct {
	Status        string
	Search        string
	ClientID      *uuid.UUID
	OnlyAvailable bool // только открытые задания с незаполненными слотами
	SortBy        string // "date", "budget", "proposals"
	SortOrder     string // "asc", "desc"
	Limit         int
	Offset        int
}

// JobListResult содержит список заданий и метаданные пагинации.
type JobListResult struct {
	Jobs    []models.Job
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// List возвращает список заданий с пагинацией, фильтрацией и поиском.
func (r *JobRepository) List(ctx context.Context, params JobListFilterParams) (*JobListResult, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM jobs j
		WHERE 1=1
	`

	query := `
		SELECT j.id, j.client_id, j.title, j.description, j.budget, j.status, j.max_workers, j.created_at, j.updated_at,
		       COALESCE(agg.allocated_total, 0) AS allocated_total,
		       COALESCE(agg.workers_assigned, 0) AS workers_assigned,
		       COALESCE(pc.proposals_count, 0) AS proposals_count
		FROM jobs j
	` + jobAggregatesJoin + `
		WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	if params.OnlyAvailable {
		clause := `
			AND j.status = 'open'
			AND (
				SELECT COUNT(*) FROM contracts c
				WHERE c.job_id = j.id AND c.status <> 'cancelled'
			) < j.max_workers
		`
		query += clause
		countQuery += clause
	}

	if params.Status != "" {
		clause := fmt.Sprintf(" AND j.status = $%d", argIndex)
		query += clause
		countQuery += clause
		args = append(args, params.Status)
		argIndex++
	}

	if params.Search != "" {
		clause := fmt.Sprintf(" AND (j.title ILIKE $%d OR j.description ILIKE $%d)", argIndex, argIndex)
		query += clause
		countQuery += clause
		args = append(args, "%"+params.Search+"%")
		argIndex++
	}

	if params.ClientID != nil {
		clause := fmt.Sprintf(" AND j.client_id = $%d", argIndex)
		query += clause
		countQuery += clause
		args = append(args, *params.ClientID)
		argIndex++
	}

	sortBy := params.SortBy
	if sortBy == "" {
		sortBy = "date"
	}
	sortOrder := "DESC"
	if params.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	switch sortBy {
	case "budget":
		query += fmt.Sprintf(" ORDER BY j.budget %s", sortOrder)
	case "proposals":
		query += fmt.Sprintf(" ORDER BY COALESCE(pc.proposals_count, 0) %s", sortOrder)
	default: // "date"
		query += fmt.Sprintf(" ORDER BY j.created_at %s", sortOrder)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, fmt.Errorf("job repository: count %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)
	argIndex++
	query += fmt.Sprintf(" OFFSET $%d", argIndex)
	args = append(args, offset)

	var rows []jobWithAggregates
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("job repository: list %w", err)
	}

	jobs := make([]models.Job, len(rows))
	for i := range rows {
		jobs[i] = rows[i].toJob()
	}

	return &JobListResult{
		Jobs:    jobs,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}, nil
}

// CreateProposal добавляет отклик. На пару (задание, исполнитель)
// допускается не более одного неотозванного отклика.
func (r *JobRepository) CreateProposal(ctx context.Context, proposal *models.Proposal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("job repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var exists bool
	checkQuery := `
		SELECT EXISTS (
			SELECT 1 FROM proposals
			WHERE job_id = $1 AND worker_id = $2 AND status <> 'withdrawn'
		)
	`
	if err := tx.GetContext(ctx, &exists, checkQuery, proposal.JobID, proposal.WorkerID); err != nil {
		return fmt.Errorf("job repository: check duplicate proposal %w", err)
	}
	if exists {
		return ErrDuplicateProposal
	}

	query := `
		INSERT INTO proposals (job_id, worker_id, cover_letter, proposed_price, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	if err := tx.QueryRowxContext(
		ctx,
		query,
		proposal.JobID,
		proposal.WorkerID,
		proposal.CoverLetter,
		proposal.ProposedPrice,
		proposal.Status,
	).Scan(&proposal.ID, &proposal.CreatedAt, &proposal.UpdatedAt); err != nil {
		return fmt.Errorf("job repository: insert proposal %w", err)
	}

	return tx.Commit()
}

// GetProposalByID возвращает отклик по идентификатору.
func (r *JobRepository) GetProposalByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := r.db.GetContext(ctx, &proposal, `SELECT * FROM proposals WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("job repository: get proposal %w", err)
	}
	return &proposal, nil
}

// UpdateProposalStatus меняет статус отклика.
func (r *JobRepository) UpdateProposalStatus(ctx context.Context, id uuid.UUID, status string) (*models.Proposal, error) {
	query := `
		UPDATE proposals
		SET status = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, job_id, worker_id, cover_letter, proposed_price, status, created_at, updated_at
	`

	var proposal models.Proposal
	if err := r.db.QueryRowxContext(ctx, query, id, status).StructScan(&proposal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("job repository: update proposal status %w", err)
	}
	return &proposal, nil
}

// ListProposalsByJob возвращает отклики по заданию.
func (r *JobRepository) ListProposalsByJob(ctx context.Context, jobID uuid.UUID) ([]models.Proposal, error) {
	query := `
		SELECT * FROM proposals
		WHERE job_id = $1
		ORDER BY created_at DESC
	`

	var proposals []models.Proposal
	if err := r.db.SelectContext(ctx, &proposals, query, jobID); err != nil {
		return nil, fmt.Errorf("job repository: list proposals by job %w", err)
	}

	return proposals, nil
}

// ListProposalsByWorker возвращает отклики исполнителя.
func (r *JobRepository) ListProposalsByWorker(ctx context.Context, workerID uuid.UUID, limit, offset int) ([]models.Proposal, error) {
	query := `
		SELECT * FROM proposals
		WHERE worker_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var proposals []models.Proposal
	if err := r.db.SelectContext(ctx, &proposals, query, workerID, limit, offset); err != nil {
		return nil, fmt.Errorf("job repository: list proposals by worker %w", err)
	}

	return proposals, nil
}

package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/laburoapp/laburo-backend/internal/models"
	"github.com/laburoapp/laburo-backend/internal/repository"
)

// SeedService наполняет базу демонстрационными данными: пользователи с
// реквизитами, задания, отклики и контракты на всех стадиях жизненного
// цикла вплоть до очереди выплат. Только для dev-окружения.
type SeedService struct {
	users       *repository.UserRepository
	jobs        *repository.JobRepository
	contracts   *repository.ContractRepository
	payments    *repository.PaymentRepository
	withdrawals *repository.WithdrawalRepository
	disputes    *repository.DisputeRepository
	tokens      *TokenManager
}

// NewSeedService создаёт новый сервис генерации данных.
func NewSeedService(
	users *repository.UserRepository,
	jobs *repository.JobRepository,
	contracts *repository.ContractRepository,
	payments *repository.PaymentRepository,
	withdrawals *repository.WithdrawalRepository,
	disputes *repository.DisputeRepository,
	tokens *TokenManager,
) *SeedService {
	return &SeedService{
		users:       users,
		jobs:        jobs,
		contracts:   contracts,
		payments:    payments,
		withdrawals: withdrawals,
		disputes:    disputes,
		tokens:      tokens,
	}
}

// SeedUser — учётка из сгенерированного набора вместе с dev-токеном.
type SeedUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
	Token string    `json:"token"`
}

// SeedResult — сводка по сгенерированным данным.
type SeedResult struct {
	Users     []SeedUser `json:"users"`
	Jobs      int        `json:"jobs"`
	Proposals int        `json:"proposals"`
	Contracts int        `json:"contracts"`
}

var (
	seedWorkerNames = [][2]string{
		{"Juan", "Pérez"}, {"María", "González"}, {"Carlos", "Rodríguez"},
		{"Ana", "Martínez"}, {"Luis", "Fernández"}, {"Lucía", "López"},
		{"Diego", "Sánchez"}, {"Valentina", "Romero"}, {"Javier", "Torres"},
		{"Camila", "Díaz"}, {"Martín", "Álvarez"}, {"Sofía", "Ruiz"},
	}

	seedBanks = []string{
		"Banco Nación", "Banco Provincia", "Banco Galicia", "Santander Río",
		"BBVA Argentina", "Banco Macro", "Brubank", "Mercado Pago",
	}

	seedAddresses = []string{
		"Av. Corrientes 1234, CABA", "Av. Rivadavia 5678, CABA",
		"Calle Florida 950, CABA", "Av. Santa Fe 2300, CABA",
		"Av. Cabildo 1800, CABA", "Calle Defensa 820, San Telmo",
	}

	seedJobTitles = []string{
		"Mudanza de oficina completa",
		"Pintura de departamento de dos ambientes",
		"Instalación eléctrica en local comercial",
		"Reparación de cañería en cocina",
		"Limpieza profunda post obra",
		"Armado de muebles de oficina",
		"Jardinería y poda de árboles",
		"Atención de evento corporativo",
		"Carga y descarga de camión",
		"Colocación de cerámicos en baño",
		"Reparación de aire acondicionado",
		"Reparto de pedidos en zona norte",
	}

	seedJobDescriptions = []string{
		"Se necesita equipo con experiencia y herramientas propias. Horario a convenir.",
		"Trabajo para esta semana, materiales incluidos. Se valora puntualidad.",
		"Presentarse con referencias comprobables. Pago contra entrega del trabajo.",
		"Zona CABA, dos jornadas estimadas. Presupuesto cerrado por el total.",
		"Se requiere disponibilidad el fin de semana y buena predisposición.",
	}
)

// SeedData генерирует демонстрационный набор: numWorkers исполнителей и
// numJobs заданий с контрактами в разных состояниях.
func (s *SeedService) SeedData(ctx context.Context, numWorkers, numJobs int) (*SeedResult, error) {
	if numWorkers <= 0 {
		numWorkers = 8
	}
	if numJobs <= 0 {
		numJobs = 6
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte("Password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("seed service: hash password %w", err)
	}

	admin, err := s.ensureUser(ctx, &models.User{
		Email:        "admin@laburo.app",
		Username:     "Administración Laburo",
		PasswordHash: string(passwordHash),
		Role:         models.RoleAdmin,
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}

	clients := make([]*models.User, 0, 2)
	for i := 0; i < 2; i++ {
		client, err := s.ensureUser(ctx, &models.User{
			Email:        fmt.Sprintf("cliente%d@laburo.app", i+1),
			Username:     fmt.Sprintf("Cliente Demo %d", i+1),
			PasswordHash: string(passwordHash),
			Role:         models.RoleClient,
			IsActive:     true,
		})
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}

	workers := make([]*models.User, 0, numWorkers)
	for i := 0; i < numWorkers; i++ {
		name := seedWorkerNames[i%len(seedWorkerNames)]
		bank := seedBanks[rand.Intn(len(seedBanks))]
		cbu := fmt.Sprintf("%08d%014d", rand.Intn(100000000), rand.Int63n(100000000000000))
		alias := fmt.Sprintf("%s.%s.%d", toASCII(strings.ToLower(name[0])), toASCII(strings.ToLower(name[1])), i+1)
		dni := fmt.Sprintf("%08d", 10000000+rand.Intn(40000000))
		phone := fmt.Sprintf("+54 9 11 %04d-%04d", rand.Intn(10000), rand.Intn(10000))
		address := seedAddresses[rand.Intn(len(seedAddresses))]

		worker, err := s.ensureUser(ctx, &models.User{
			Email:        fmt.Sprintf("%s.%s%d@laburo.app", toASCII(strings.ToLower(name[0])), toASCII(strings.ToLower(name[1])), i+1),
			Username:     fmt.Sprintf("%s %s", name[0], name[1]),
			PasswordHash: string(passwordHash),
			Role:         models.RoleWorker,
			IsActive:     true,
			BankName:     &bank,
			CBU:          &cbu,
			AccountAlias: &alias,
			DNI:          &dni,
			Phone:        &phone,
			Address:      &address,
		})
		if err != nil {
			return nil, err
		}
		workers = append(workers, worker)
	}

	result := &SeedResult{}
	if err := s.generateJobs(ctx, admin, clients, workers, numJobs, result); err != nil {
		return nil, err
	}

	for _, u := range []*models.User{admin, clients[0], workers[0]} {
		token, _, err := s.tokens.Issue(u)
		if err != nil {
			return nil, fmt.Errorf("seed service: issue token %w", err)
		}
		result.Users = append(result.Users, SeedUser{ID: u.ID, Email: u.Email, Role: u.Role, Token: token})
	}

	return result, nil
}

// ensureUser возвращает существующего пользователя по email или создаёт
// нового, чтобы повторный запуск не падал на уникальности.
func (s *SeedService) ensureUser(ctx context.Context, user *models.User) (*models.User, error) {
	existing, err := s.users.GetByEmail(ctx, user.Email)
	if err == nil {
		return existing, nil
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("seed service: create user %s %w", user.Email, err)
	}
	return user, nil
}

// Глубина прогона контракта по жизненному циклу:
// 0 pending, 1 ready, 2 in_progress, 3 awaiting_confirmation,
// 4 completed, 5 completed+verified (очередь выплат), 6 выплачен.
var seedContractDepths = []int{5, 2, 6, 5, 0, 3, 5, 1, 4, 5}

func (s *SeedService) generateJobs(ctx context.Context, admin *models.User, clients, workers []*models.User, numJobs int, result *SeedResult) error {
	contractIdx := 0
	disputeOpened := false
	var paidWorker *models.User
	var paidAmount float64

	for i := 0; i < numJobs; i++ {
		client := clients[i%len(clients)]
		maxWorkers := rand.Intn(3) + 1
		budget := float64(rand.Intn(80000) + 20000)

		job := &models.Job{
			ClientID:    client.ID,
			Title:       seedJobTitles[i%len(seedJobTitles)],
			Description: seedJobDescriptions[rand.Intn(len(seedJobDescriptions))],
			Budget:      budget,
			Status:      models.JobStatusOpen,
			MaxWorkers:  maxWorkers,
		}
		if err := s.jobs.Create(ctx, job); err != nil {
			return fmt.Errorf("seed service: create job %w", err)
		}
		result.Jobs++

		// Откликов больше, чем слотов: часть остаётся в ожидании.
		numProposals := maxWorkers + 1
		if numProposals > len(workers) {
			numProposals = len(workers)
		}
		start := rand.Intn(len(workers))
		proposals := make([]*models.Proposal, 0, numProposals)
		for p := 0; p < numProposals; p++ {
			worker := workers[(start+p)%len(workers)]
			proposal := &models.Proposal{
				JobID:       job.ID,
				WorkerID:    worker.ID,
				CoverLetter: "Hola, tengo experiencia en este tipo de trabajo y disponibilidad inmediata.",
			}
			if rand.Float32() > 0.5 {
				price := models.Round2(budget / float64(maxWorkers) * (0.8 + rand.Float64()*0.2))
				proposal.ProposedPrice = &price
			}
			if err := s.jobs.CreateProposal(ctx, proposal); err != nil {
				return fmt.Errorf("seed service: create proposal %w", err)
			}
			result.Proposals++
			proposals = append(proposals, proposal)
		}

		for c := 0; c < maxWorkers && c < len(proposals); c++ {
			proposal := proposals[c]
			if _, err := s.jobs.UpdateProposalStatus(ctx, proposal.ID, models.ProposalStatusApproved); err != nil {
				return fmt.Errorf("seed service: approve proposal %w", err)
			}

			contract, err := s.contracts.CreateWithAllocation(ctx, repository.CreateContractParams{
				Proposal:       proposal,
				ClientID:       client.ID,
				ProposedPrice:  proposal.ProposedPrice,
				CommissionRate: 0.10,
			})
			if err != nil {
				return fmt.Errorf("seed service: create contract %w", err)
			}
			result.Contracts++

			depth := seedContractDepths[contractIdx%len(seedContractDepths)]
			contractIdx++

			net, err := s.advanceContract(ctx, contract, client, admin, depth)
			if err != nil {
				return err
			}
			if depth >= 6 {
				for _, w := range workers {
					if w.ID == contract.WorkerID {
						paidWorker = w
						paidAmount = net
					}
				}
			}

			// Один спор на прогон: по первому контракту, дошедшему до работы.
			if !disputeOpened && depth == 2 {
				dispute := &models.Dispute{
					ContractID:  contract.ID,
					InitiatorID: client.ID,
					DefendantID: contract.WorkerID,
					Category:    "quality",
					Reason:      "El trabajo quedó incompleto y no responde los mensajes",
				}
				if err := s.disputes.Open(ctx, dispute); err != nil {
					return fmt.Errorf("seed service: open dispute %w", err)
				}
				disputeOpened = true
			}
		}
	}

	// Заявка на вывод от исполнителя, уже получившего выплату.
	if paidWorker != nil && paidAmount > 0 {
		req := &models.WithdrawalRequest{
			UserID:       paidWorker.ID,
			Amount:       models.Round2(paidAmount / 2),
			BankName:     paidWorker.BankName,
			CBU:          paidWorker.CBU,
			AccountAlias: paidWorker.AccountAlias,
		}
		if err := s.withdrawals.Create(ctx, req); err != nil {
			return fmt.Errorf("seed service: create withdrawal %w", err)
		}
	}

	return nil
}

// advanceContract прогоняет контракт до заданной глубины жизненного
// цикла. Возвращает чистую сумму выплаты, если контракт был оплачен.
func (s *SeedService) advanceContract(ctx context.Context, contract *models.Contract, client, admin *models.User, depth int) (float64, error) {
	if depth < 1 {
		return 0, nil
	}
	if _, err := s.payments.DepositToEscrow(ctx, contract.ID, contract.Price); err != nil {
		return 0, fmt.Errorf("seed service: deposit escrow %w", err)
	}
	if depth < 2 {
		return 0, nil
	}
	if _, err := s.contracts.Accept(ctx, contract.ID, contract.WorkerID); err != nil {
		return 0, fmt.Errorf("seed service: accept contract %w", err)
	}
	if depth < 3 {
		return 0, nil
	}
	if _, err := s.contracts.UpdateStatus(ctx, contract.ID, models.ContractStatusInProgress, models.ContractStatusAwaitingConfirmation, &contract.WorkerID); err != nil {
		return 0, fmt.Errorf("seed service: request completion %w", err)
	}
	if depth < 4 {
		return 0, nil
	}
	if _, _, err := s.contracts.Confirm(ctx, contract.ID, models.RoleClient, client.ID); err != nil {
		return 0, fmt.Errorf("seed service: client confirm %w", err)
	}
	if _, _, err := s.contracts.Confirm(ctx, contract.ID, models.RoleWorker, contract.WorkerID); err != nil {
		return 0, fmt.Errorf("seed service: worker confirm %w", err)
	}
	if depth < 5 {
		return 0, nil
	}
	payment, err := s.payments.GetByContractID(ctx, contract.ID)
	if err != nil {
		return 0, fmt.Errorf("seed service: load payment %w", err)
	}
	if _, err := s.payments.VerifyForPayout(ctx, payment.ID, admin.ID); err != nil {
		return 0, fmt.Errorf("seed service: verify payout %w", err)
	}
	if depth < 6 {
		return 0, nil
	}
	proofURL := fmt.Sprintf("https://files.laburo.app/proofs/%s.pdf", contract.ContractNumber)
	payout, err := s.payments.RecordPayout(ctx, repository.RecordPayoutParams{
		ContractID: contract.ID,
		ProofURL:   proofURL,
		Deductions: models.PayoutDeductions{BankFee: 150},
		AdminID:    admin.ID,
	})
	if err != nil {
		return 0, fmt.Errorf("seed service: record payout %w", err)
	}
	return payout.NetAmount, nil
}

// toASCII убирает диакритику из испанских имён для email и алиасов.
func toASCII(s string) string {
	replacements := map[rune]string{
		'á': "a", 'é': "e", 'í': "i", 'ó': "o", 'ú': "u", 'ñ': "n", 'ü': "u",
		'Á': "A", 'É': "E", 'Í': "I", 'Ó': "O", 'Ú': "U", 'Ñ': "N", 'Ü': "U",
	}

	var b strings.Builder
	for _, r := range s {
		if val, ok := replacements[r]; ok {
			b.WriteString(val)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

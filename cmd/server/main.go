package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/config"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/db"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/handler"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/repository"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/server"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/service"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect database", "err", err)
		os.Exit(1)
	}
	defer pg.Close()

	// repositories
	workerRepo := repository.WorkerRepository{DB: pg, Currency: cfg.DefaultCurrency}
	sessionRepo := repository.SessionRepository{DB: pg}
	approvalRepo := repository.ApprovalRepository{DB: pg}
	payrollRepo := repository.PayrollRepository{DB: pg, Currency: cfg.DefaultCurrency}
	auditRepo := repository.AuditLogRepository{DB: pg}

	// services
	identitySvc := service.IdentityService{Workers: workerRepo}
	authSvc := service.AuthService{Config: cfg, Workers: workerRepo, Logger: logger}
	sessionSvc := service.SessionService{
		Config:    cfg,
		Identity:  identitySvc,
		Sessions:  sessionRepo,
		Approvals: approvalRepo,
		Logger:    logger,
	}
	approvalSvc := service.ApprovalService{
		Config:    cfg,
		Identity:  identitySvc,
		Sessions:  sessionRepo,
		Approvals: approvalRepo,
		Audit:     auditRepo,
		Logger:    logger,
	}
	payrollSvc := service.PayrollService{
		Config:    cfg,
		Workers:   workerRepo,
		Sessions:  sessionRepo,
		Approvals: approvalRepo,
		Payroll:   payrollRepo,
		Audit:     auditRepo,
		Logger:    logger,
	}

	// handlers
	healthHandler := handler.HealthHandler{DB: pg}
	authHandler := handler.AuthHandler{Service: &authSvc}
	attendanceHandler := handler.AttendanceHandler{Sessions: sessionSvc, Location: cfg.Location, Logger: logger}
	weeklyHandler := handler.WeeklyHandler{Approvals: approvalSvc, Location: cfg.Location, Logger: logger}
	payrollHandler := handler.PayrollHandler{Payroll: payrollSvc, Location: cfg.Location, Logger: logger}
	workerHandler := handler.WorkerHandler{Repo: workerRepo}
	policyHandler := handler.PolicyHandler{Config: cfg}
	auditHandler := handler.AuditHandler{Repo: auditRepo}
	docsHandler := handler.DocsHandler{OpenAPIPath: "openapi.yaml"}
	homeHandler := handler.HomeHandler{}

	router := server.NewRouter(cfg, logger, healthHandler, authHandler, attendanceHandler, weeklyHandler,
		payrollHandler, workerHandler, policyHandler, auditHandler, docsHandler, homeHandler)

	if err := server.Start(ctx, cfg, router, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

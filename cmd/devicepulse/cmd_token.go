package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/HerbHall/devicepulse/internal/config"
	"github.com/HerbHall/devicepulse/internal/server"
	"github.com/HerbHall/devicepulse/pkg/models"
)

func runToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	tenant := fs.String("tenant", "", "tenant id (required)")
	customer := fs.String("customer", "", "customer id")
	authority := fs.String("authority", server.AuthorityTenantAdmin, "TENANT_ADMIN or CUSTOMER_USER")
	subject := fs.String("subject", "devicepulse-cli", "token subject")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}

	err = writeToken(os.Stdout, cfg.GetString("auth.jwt_secret"), tokenRequest{
		Tenant:    *tenant,
		Customer:  *customer,
		Authority: *authority,
		Subject:   *subject,
		TTL:       *ttl,
	}, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
}

type tokenRequest struct {
	Tenant    string
	Customer  string
	Authority string
	Subject   string
	TTL       time.Duration
}

// writeToken signs a token for req with secret and prints it.
func writeToken(w io.Writer, secret string, req tokenRequest, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}
	if req.TTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", req.TTL)
	}
	tenantID, err := models.ParseTenantID(req.Tenant)
	if err != nil {
		return err
	}
	customerID, err := models.ParseCustomerID(req.Customer)
	if err != nil {
		return err
	}

	auth := server.NewAuthenticator([]byte(secret), nil)
	tok, err := auth.IssueToken(server.Identity{
		Subject:    req.Subject,
		TenantID:   tenantID,
		CustomerID: customerID,
		Authority:  req.Authority,
	}, now, req.TTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	_, err = fmt.Fprintln(w, tok)
	return err
}

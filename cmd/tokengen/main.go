// Command tokengen mints a bearer token for local development and testing
// against a running instance, signed with the configured JWT secret.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spec-kit/grievance-service/internal/auth"
	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/domain"
)

func main() {
	subjectID := flag.String("subject", "", "subject identifier to embed in the token")
	subjectType := flag.String("type", string(domain.SubjectTypeUser), "subject type: END_USER or OFFICER")
	role := flag.String("role", "", "officer role: OFFICER, HR_ADMIN or SUPER_ADMIN")
	flag.Parse()

	if *subjectID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	subject := domain.SubjectType(*subjectType)
	switch subject {
	case domain.SubjectTypeUser, domain.SubjectTypeOfficer:
	default:
		log.Fatalf("unknown subject type %q", *subjectType)
	}

	var officerRole *domain.Role
	if *role != "" {
		if subject != domain.SubjectTypeOfficer {
			log.Fatalf("role only applies to OFFICER subjects")
		}
		switch r := domain.Role(*role); r {
		case domain.RoleOfficer, domain.RoleHRAdmin, domain.RoleSuperAdmin:
			officerRole = &r
		default:
			log.Fatalf("unknown role %q", *role)
		}
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(*subjectID, subject, officerRole)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
}

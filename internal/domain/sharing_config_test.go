package domain

import "testing"

func validConfig() SharingConfig {
	return SharingConfig{
		Strategy:  StrategyCreate,
		Requester: "alice",
		Recipients: []RecipientSpec{
			{Name: "partner-a", Kind: "external", Addresses: []string{"10.0.0.1"}},
		},
		Shares: []ShareSpec{
			{
				Name:       "share-a",
				Objects:    []string{"orders"},
				Recipients: []string{"partner-a"},
				Pipelines: []PipelineSpec{
					{Name: "pipe-a", Source: "src", Target: "dst", Schedule: Schedule{Mode: ScheduleCron, Expr: "0 * * * *"}},
				},
			},
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy = "UPSERT"

	if err := cfg.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateRejectsMissingRequester(t *testing.T) {
	cfg := validConfig()
	cfg.Requester = "  "

	if err := cfg.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateRejectsDuplicateRecipients(t *testing.T) {
	cfg := validConfig()
	cfg.Recipients = append(cfg.Recipients, cfg.Recipients[0])

	if err := cfg.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateRejectsUnknownRecipientReference(t *testing.T) {
	cfg := validConfig()
	cfg.Shares[0].Recipients = []string{"nobody"}

	if err := cfg.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateAllowsUnknownRecipientOnReconcile(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy = StrategyReconcile
	cfg.Shares[0].Recipients = []string{"nobody"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("reconcile should not cross-check recipient refs, got %v", err)
	}
}

func TestScheduleValidate(t *testing.T) {
	cases := []struct {
		name     string
		schedule Schedule
		wantErr  bool
	}{
		{"cron with expression", Schedule{Mode: ScheduleCron, Expr: "0 2 * * *", Timezone: "UTC"}, false},
		{"cron without expression", Schedule{Mode: ScheduleCron}, true},
		{"continuous", Schedule{Mode: ScheduleContinuous}, false},
		{"continuous with expression", Schedule{Mode: ScheduleContinuous, Expr: "0 * * * *"}, true},
		{"unknown mode", Schedule{Mode: "HOURLY"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.schedule.Validate()
			if tc.wantErr && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

package rbac

import "testing"

func TestHasCapabilityMatrix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		roles      []string
		capability Capability
		want       bool
	}{
		{
			name:       "admin has defined capability",
			roles:      []string{"admin"},
			capability: CapDashboardOverview,
			want:       true,
		},
		{
			name:       "admin denied for undefined capability",
			roles:      []string{"admin"},
			capability: Capability("made.up"),
			want:       false,
		},
		{
			name:       "designer can edit templates",
			roles:      []string{"designer"},
			capability: CapTemplatesEdit,
			want:       true,
		},
		{
			name:       "designer cannot manage records",
			roles:      []string{"designer"},
			capability: CapRecordsManage,
			want:       false,
		},
		{
			name:       "registrar can generate enrollment numbers",
			roles:      []string{"registrar"},
			capability: CapEnrollmentGenerate,
			want:       true,
		},
		{
			name:       "registrar cannot publish templates",
			roles:      []string{"registrar"},
			capability: CapTemplatesPublish,
			want:       false,
		},
		{
			name:       "printer can compose print sheets",
			roles:      []string{"printer"},
			capability: CapPrintCompose,
			want:       true,
		},
		{
			name:       "printer cannot upload media",
			roles:      []string{"printer"},
			capability: CapMediaUpload,
			want:       false,
		},
		{
			name:       "combined roles inherit union of capabilities",
			roles:      []string{"printer", "registrar"},
			capability: CapExportsRun,
			want:       true,
		},
		{
			name:       "unknown role grants nothing",
			roles:      []string{"unknown"},
			capability: CapRecordsView,
			want:       false,
		},
		{
			name:       "empty capability defaults to visible",
			roles:      []string{"printer"},
			capability: Capability(""),
			want:       true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HasCapability(tc.roles, tc.capability); got != tc.want {
				t.Fatalf("HasCapability(%v, %q) = %v, want %v", tc.roles, tc.capability, got, tc.want)
			}
		})
	}
}

func TestCapabilitiesForRoles(t *testing.T) {
	t.Parallel()

	caps := CapabilitiesForRoles([]string{"registrar"})
	if caps[CapRecordsManage] != true {
		t.Fatalf("registrar should have CapRecordsManage")
	}
	if caps[CapTemplatesEdit] {
		t.Fatalf("registrar must not have CapTemplatesEdit")
	}
}

func TestHasAnyRole(t *testing.T) {
	t.Parallel()

	if !HasAnyRole([]string{"printer"}, Roles{RolePrinter}) {
		t.Fatal("printer should satisfy role requirement")
	}
	if HasAnyRole([]string{"designer"}, Roles{RolePrinter}) {
		t.Fatal("designer should not satisfy printer-only requirement")
	}
	if !HasAnyRole([]string{"designer"}, Roles{RoleDesigner, RolePrinter}) {
		t.Fatal("designer should satisfy designer-or-printer requirement")
	}
	if !HasAnyRole([]string{"unknown", "admin"}, Roles{RoleDesigner}) {
		t.Fatal("admin should satisfy requirement even when other roles unknown")
	}
}

package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"desktown-backend/shared/database/models"
)

func TestObjectACLCanRead(t *testing.T) {
	owner := &models.User{ID: uuid.New(), Role: models.RoleMember}
	stranger := &models.User{ID: uuid.New(), Role: models.RoleMember}
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	public := ObjectACL{Owner: owner.ID.String(), Visibility: VisibilityPublic}
	private := ObjectACL{Owner: owner.ID.String(), Visibility: VisibilityPrivate}

	if !public.CanRead(nil) {
		t.Error("public objects are readable anonymously")
	}
	if private.CanRead(nil) || private.CanRead(stranger) {
		t.Error("private objects are hidden from other users")
	}
	if !private.CanRead(owner) || !private.CanRead(admin) {
		t.Error("owner and admins can read private objects")
	}
}

func TestObjectKey(t *testing.T) {
	owner := uuid.New()
	key := ObjectKey(VisibilityPrivate, owner, "Report.PDF")

	if !strings.HasPrefix(key, "private/"+owner.String()+"/") {
		t.Fatalf("unexpected prefix %s", key)
	}
	if !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("extension should be lowercased: %s", key)
	}
	if NormalizeVisibility("PRIVATE") != VisibilityPrivate || NormalizeVisibility("other") != VisibilityPublic {
		t.Fatal("visibility normalization")
	}
}

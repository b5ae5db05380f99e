package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/ada-judge-api/internal/config"
	"github.com/noah-isme/ada-judge-api/internal/dto"
	"github.com/noah-isme/ada-judge-api/internal/models"
	"github.com/noah-isme/ada-judge-api/internal/observability"
	"github.com/noah-isme/ada-judge-api/internal/repository"
	"github.com/noah-isme/ada-judge-api/internal/utils"
	"github.com/noah-isme/ada-judge-api/pkg/githost"
)

type gatewayFixture struct {
	db         *gorm.DB
	gateway    IntakeGateway
	helper     *fakeHelper
	dispatcher *recordingDispatcher
	users      repository.UserRepository
	quotas     repository.QuotaRepository
	registry   SubmissionRegistry
	git        config.GitConfig
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	db := setupTestDB(t)
	git := gitLayout(t)
	helper := newFakeHelper()
	dispatcher := &recordingDispatcher{}

	users := repository.NewUserRepository(db)
	problems := repository.NewProblemRepository(db)
	quotas := repository.NewQuotaRepository(db)
	registry := NewSubmissionRegistry(repository.NewSubmissionRepository(db), testLogger())

	gateway := NewIntakeGateway(IntakeDeps{
		Users:       users,
		Problems:    problems,
		Keys:        NewKeyStore(users, testLogger()),
		Provisioner: NewRepoProvisioner(git, helper, testLogger()),
		Ledger:      NewQuotaLedger(quotas, problems, time.UTC, testLogger()),
		Registry:    registry,
		Dispatcher:  dispatcher,
	}, testLogger())

	return &gatewayFixture{
		db:         db,
		gateway:    gateway,
		helper:     helper,
		dispatcher: dispatcher,
		users:      users,
		quotas:     quotas,
		registry:   registry,
		git:        git,
	}
}

func (f *gatewayFixture) withUploadKey(t *testing.T, user models.User) string {
	t.Helper()
	key := "0123456789abcdefghij" + user.Meta.ID
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", user.ID).Update("git_upload_key", key).Error)
	return key
}

func TestChangeCredentialsFirstKeyProvisionsRepository(t *testing.T) {
	f := newGatewayFixture(t)
	user := createUser(t, f.db, "b04902001")
	ctx := context.Background()

	result, err := f.gateway.ChangeCredentials(ctx, user.ID, dto.ChangeCredentialsRequest{
		CurrentPassword: "old-password-123",
		NewSSHKey:       "ssh-ed25519 " + ed25519Payload + " me@host\n",
	})
	require.NoError(t, err)
	require.Equal(t, []string{FieldSSHKey}, result.Changed)

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "ssh-ed25519 "+ed25519Payload, stored.CurrentSSHKey())
	require.Regexp(t, `^[A-Za-z0-9]{20}b04902001$`, stored.GitUploadKey)

	token, err := os.ReadFile(filepath.Join(f.git.RepoRoot, "b04902001.git", "hooks", "key"))
	require.NoError(t, err)
	require.Equal(t, stored.GitUploadKey, string(token))
	require.Equal(t, 1, f.helper.createCount())
}

func TestChangeCredentialsKeyTakenByAnotherUser(t *testing.T) {
	f := newGatewayFixture(t)
	alice := createUser(t, f.db, "alice")
	bob := createUser(t, f.db, "bob")
	ctx := context.Background()
	key := "ssh-rsa " + rsaPayload
	require.NoError(t, f.users.UpdateCredentials(ctx, alice.ID, key, "alice-upload-key-0000000"))

	_, err := f.gateway.ChangeCredentials(ctx, bob.ID, dto.ChangeCredentialsRequest{
		CurrentPassword: "old-password-123",
		NewSSHKey:       key,
	})
	require.ErrorIs(t, err, ErrKeyAlreadyInUse)
	require.Equal(t, 0, f.helper.createCount())
	require.Equal(t, 0, f.helper.installCount("bob.pub"))

	stored, err := f.users.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	require.Nil(t, stored.SSHKey)
}

func TestChangeCredentialsSameKeyIsNoop(t *testing.T) {
	f := newGatewayFixture(t)
	user := createUser(t, f.db, "alice")
	ctx := context.Background()
	key := "ssh-rsa " + rsaPayload
	require.NoError(t, f.users.UpdateCredentials(ctx, user.ID, key, "alice-upload-key-0000000"))

	result, err := f.gateway.ChangeCredentials(ctx, user.ID, dto.ChangeCredentialsRequest{
		CurrentPassword: "old-password-123",
		NewSSHKey:       key + " new comment",
	})
	require.NoError(t, err)
	require.Empty(t, result.Changed)
	require.Equal(t, 0, f.helper.installCount("alice.pub"))
}

func TestChangeCredentialsValidation(t *testing.T) {
	cases := []struct {
		name string
		req  dto.ChangeCredentialsRequest
		err  error
	}{
		{name: "wrong password", req: dto.ChangeCredentialsRequest{CurrentPassword: "nope"}, err: ErrBadCredentials},
		{name: "confirmation mismatch", req: dto.ChangeCredentialsRequest{NewPassword: "abcdefghij", ConfirmPassword: "abcdefghik"}, err: ErrPasswordMismatch},
		{name: "eight characters is too short", req: dto.ChangeCredentialsRequest{NewPassword: "abcdefgh", ConfirmPassword: "abcdefgh"}, err: ErrPasswordTooShort},
		{name: "too long", req: dto.ChangeCredentialsRequest{NewPassword: strings.Repeat("a", 31), ConfirmPassword: strings.Repeat("a", 31)}, err: ErrPasswordTooLong},
		{name: "single key token", req: dto.ChangeCredentialsRequest{NewSSHKey: "ssh-rsa"}, err: ErrMalformedKey},
		{name: "unsupported key", req: dto.ChangeCredentialsRequest{NewSSHKey: "ssh-dss " + rsaPayload}, err: ErrUnsupportedAlgorithm},
		{name: "bad payload", req: dto.ChangeCredentialsRequest{NewSSHKey: "ssh-rsa notbase64"}, err: ErrInvalidPayload},
		{name: "long name", req: dto.ChangeCredentialsRequest{NewName: strings.Repeat("n", 17)}, err: ErrNameTooLong},
		{name: "illegal name", req: dto.ChangeCredentialsRequest{NewName: "bad name!"}, err: ErrNameIllegal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newGatewayFixture(t)
			user := createUser(t, f.db, "alice")
			if tc.req.CurrentPassword == "" {
				tc.req.CurrentPassword = "old-password-123"
			}

			_, err := f.gateway.ChangeCredentials(context.Background(), user.ID, tc.req)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestChangeCredentialsPasswordAndName(t *testing.T) {
	f := newGatewayFixture(t)
	user := createUser(t, f.db, "alice")
	ctx := context.Background()

	result, err := f.gateway.ChangeCredentials(ctx, user.ID, dto.ChangeCredentialsRequest{
		CurrentPassword: "old-password-123",
		NewPassword:     "brand-new-pass",
		ConfirmPassword: "brand-new-pass",
		NewName:         "Alice2024",
	})
	require.NoError(t, err)
	require.Equal(t, []string{FieldPassword, FieldName}, result.Changed)

	_, err = f.gateway.ChangeCredentials(ctx, user.ID, dto.ChangeCredentialsRequest{CurrentPassword: "old-password-123"})
	require.ErrorIs(t, err, ErrBadCredentials)

	result, err = f.gateway.ChangeCredentials(ctx, user.ID, dto.ChangeCredentialsRequest{
		CurrentPassword: "brand-new-pass",
		NewName:         "Alice2024",
	})
	require.NoError(t, err)
	require.Empty(t, result.Changed)

	profile, err := f.gateway.Profile(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice2024", profile.Meta.Name)
}

func TestChangeCredentialsRejectsBeforeAnyWrite(t *testing.T) {
	f := newGatewayFixture(t)
	user := createUser(t, f.db, "alice")
	ctx := context.Background()

	_, err := f.gateway.ChangeCredentials(ctx, user.ID, dto.ChangeCredentialsRequest{
		CurrentPassword: "old-password-123",
		NewPassword:     "brandnew12",
		ConfirmPassword: "brandnew12",
		NewSSHKey:       "rsa AAAA",
	})
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = f.gateway.ChangeCredentials(ctx, user.ID, dto.ChangeCredentialsRequest{
		CurrentPassword: "old-password-123",
		NewPassword:     "brandnew12",
		ConfirmPassword: "brandnew12",
		NewSSHKey:       "ssh-ed25519 " + ed25519Payload,
		NewName:         "bad name!",
	})
	require.ErrorIs(t, err, ErrNameIllegal)
	require.Zero(t, f.helper.createCount())

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, utils.CheckPassword(stored.Password, "old-password-123"))
	require.Empty(t, stored.CurrentSSHKey())
	require.Empty(t, stored.GitUploadKey)
	require.Equal(t, user.Meta.Name, stored.Meta.Name)
}

func TestChangeCredentialsInstallFailureKeepsOldKey(t *testing.T) {
	f := newGatewayFixture(t)
	user := createUser(t, f.db, "alice")
	f.helper.failInstall["key"] = &githost.ToolError{Op: "install-file", ExitCode: 1}

	_, err := f.gateway.ChangeCredentials(context.Background(), user.ID, dto.ChangeCredentialsRequest{
		CurrentPassword: "old-password-123",
		NewSSHKey:       "ssh-rsa " + rsaPayload,
	})
	require.ErrorIs(t, err, ErrPersistenceFailed)
	require.ErrorIs(t, err, ErrKeyInstallFailed)

	var persistErr *PersistenceError
	require.ErrorAs(t, err, &persistErr)
	require.Equal(t, FieldSSHKey, persistErr.Field)

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Nil(t, stored.SSHKey)
	require.Empty(t, stored.GitUploadKey)
}

func TestIntakeQuotaExhaustion(t *testing.T) {
	f := newGatewayFixture(t)
	user := createUser(t, f.db, "alice")
	problem := createProblem(t, f.db, "A+B", 2)
	key := f.withUploadKey(t, user)
	ctx := context.Background()

	for i, hash := range []string{"aaaaaaa", "bbbbbbb"} {
		resp, err := f.gateway.Intake(ctx, dto.IntakeRequest{Key: key, ProblemID: problem.ID, GitHash: hash, Source: "int main(){}"})
		require.NoError(t, err)
		require.False(t, resp.Duplicate)
		require.Equal(t, 1-i, resp.RemainingQuota)
		require.Equal(t, models.SubmissionStatusPending, resp.Submission.Status)
	}

	_, err := f.gateway.Intake(ctx, dto.IntakeRequest{Key: key, ProblemID: problem.ID, GitHash: "ccccccc", Source: "int main(){}"})
	require.ErrorIs(t, err, ErrQuotaExceeded)

	var count int64
	require.NoError(t, f.db.Model(&models.Submission{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
	require.Len(t, f.dispatcher.dispatched(), 2)
}

func TestIntakeIsIdempotentPerRevision(t *testing.T) {
	f := newGatewayFixture(t)
	user := createUser(t, f.db, "alice")
	problem := createProblem(t, f.db, "A+B", 5)
	key := f.withUploadKey(t, user)
	ctx := context.Background()
	req := dto.IntakeRequest{Key: key, ProblemID: problem.ID, GitHash: "abcdef1", Source: "print(1)"}

	first, err := f.gateway.Intake(ctx, req)
	require.NoError(t, err)
	second, err := f.gateway.Intake(ctx, req)
	require.NoError(t, err)

	require.True(t, second.Duplicate)
	require.Equal(t, first.Submission.ID, second.Submission.ID)
	require.Equal(t, 4, second.RemainingQuota)

	record, err := f.quotas.Get(ctx, user.ID, problem.ID)
	require.NoError(t, err)
	require.Equal(t, 1, record.QuotaUsed)
	require.Len(t, f.dispatcher.dispatched(), 1)
}

func TestIntakeConcurrentDuplicatePushes(t *testing.T) {
	f := newGatewayFixture(t)
	user := createUser(t, f.db, "alice")
	problem := createProblem(t, f.db, "A+B", 5)
	key := f.withUploadKey(t, user)
	req := dto.IntakeRequest{Key: key, ProblemID: problem.ID, GitHash: "abcdef1", Source: "print(1)"}

	var wg sync.WaitGroup
	ids := make(chan uint, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.gateway.Intake(context.Background(), req)
			if err == nil {
				ids <- resp.Submission.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uint]struct{}{}
	for id := range ids {
		seen[id] = struct{}{}
	}
	require.Len(t, seen, 1)

	record, err := f.quotas.Get(context.Background(), user.ID, problem.ID)
	require.NoError(t, err)
	require.Equal(t, 1, record.QuotaUsed)
}

func TestIntakeRejections(t *testing.T) {
	f := newGatewayFixture(t)
	user := createUser(t, f.db, "alice")
	problem := createProblem(t, f.db, "A+B", 5)
	key := f.withUploadKey(t, user)
	ctx := context.Background()

	_, err := f.gateway.Intake(ctx, dto.IntakeRequest{Key: "unknown-upload-key-000000", ProblemID: problem.ID, GitHash: "abcdef1", Source: "x"})
	require.ErrorIs(t, err, ErrUploadKeyInvalid)

	_, err = f.gateway.Intake(ctx, dto.IntakeRequest{Key: key, ProblemID: 999, GitHash: "abcdef1", Source: "x"})
	require.ErrorIs(t, err, ErrNoSuchProblem)

	_, err = f.gateway.Intake(ctx, dto.IntakeRequest{Key: key, ProblemID: problem.ID, GitHash: "abcdef1", Source: "\x7fELF\x02\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00"})
	require.ErrorIs(t, err, ErrSourceNotText)

	_, err = f.gateway.Intake(ctx, dto.IntakeRequest{Key: key, ProblemID: problem.ID, GitHash: "not-a-hash", Source: "x"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	records, err := f.quotas.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestIntakeDispatchFailureStillAccepts(t *testing.T) {
	f := newGatewayFixture(t)
	f.dispatcher.err = errBoom
	user := createUser(t, f.db, "alice")
	problem := createProblem(t, f.db, "A+B", 5)
	key := f.withUploadKey(t, user)

	resp, err := f.gateway.Intake(context.Background(), dto.IntakeRequest{Key: key, ProblemID: problem.ID, GitHash: "abcdef1", Source: "x"})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, resp.Submission.Status)
}

type failingRegistry struct {
	SubmissionRegistry
}

func (failingRegistry) Create(context.Context, CreateSubmissionInput) (models.Submission, error) {
	return models.Submission{}, errBoom
}

func TestIntakeRefundsQuotaWhenSubmissionNotStored(t *testing.T) {
	f := newGatewayFixture(t)
	user := createUser(t, f.db, "alice")
	problem := createProblem(t, f.db, "A+B", 5)
	key := f.withUploadKey(t, user)
	problems := repository.NewProblemRepository(f.db)

	gateway := NewIntakeGateway(IntakeDeps{
		Users:      f.users,
		Problems:   problems,
		Ledger:     NewQuotaLedger(f.quotas, problems, time.UTC, testLogger()),
		Registry:   failingRegistry{SubmissionRegistry: f.registry},
		Dispatcher: f.dispatcher,
	}, testLogger())

	_, err := gateway.Intake(context.Background(), dto.IntakeRequest{Key: key, ProblemID: problem.ID, GitHash: "abcdef1", Source: "x"})
	require.ErrorIs(t, err, ErrPersistenceFailed)

	record, err := f.quotas.Get(context.Background(), user.ID, problem.ID)
	require.NoError(t, err)
	require.Equal(t, 0, record.QuotaUsed)
	require.Empty(t, f.dispatcher.dispatched())
}

func TestJudgeLifecycleAfterIntake(t *testing.T) {
	f := newGatewayFixture(t)
	user := createUser(t, f.db, "alice")
	problem := createProblem(t, f.db, "A+B", 5)
	key := f.withUploadKey(t, user)
	ctx := context.Background()

	resp, err := f.gateway.Intake(observability.WithCorrelationID(ctx, "push-42"), dto.IntakeRequest{Key: key, ProblemID: problem.ID, GitHash: "abcdef1", Source: "x"})
	require.NoError(t, err)
	id := resp.Submission.ID

	jobs := f.dispatcher.dispatched()
	require.Len(t, jobs, 1)
	require.Equal(t, id, jobs[0].SubmissionID)
	require.Equal(t, "alice", jobs[0].UserID)
	require.Equal(t, "push-42", jobs[0].CorrelationID)

	_, err = f.registry.UpdateFromJudge(ctx, id, dto.JudgeUpdateRequest{Status: models.SubmissionStatusJudging})
	require.NoError(t, err)
	_, err = f.registry.UpdateFromJudge(ctx, id, dto.JudgeUpdateRequest{Status: models.SubmissionStatusDone, Result: strPtr("AC"), Points: floatPtr(100), Runtime: floatPtr(0.1)})
	require.NoError(t, err)

	latest, err := f.gateway.HookLatest(ctx, key)
	require.NoError(t, err)
	require.Equal(t, id, latest.ID)
	require.True(t, latest.Terminal)
	require.Equal(t, "Accepted", latest.ResultText)

	views, err := f.gateway.HookByGitHash(ctx, key, "abcdef1")
	require.NoError(t, err)
	require.Len(t, views, 1)

	_, err = f.gateway.HookLatest(ctx, "")
	require.ErrorIs(t, err, ErrUploadKeyInvalid)
}

package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ctxpack/internal/semantic"
	"github.com/standardbeagle/ctxpack/internal/types"
)

func TestExtract_EntitiesClassAndMethod(t *testing.T) {
	res := Extract("Fix UserController.validateLogin for the auth flow", nil, nil)
	assert.Contains(t, res.Entities.ClassNames, "UserController")
	assert.Contains(t, res.Entities.MethodNames, "validateLogin")
	require.Contains(t, res.Entities.CaseVariants, "UserController")
	assert.Contains(t, res.Entities.CaseVariants["UserController"], "user_controller")
}

func TestExtract_SnakeCaseEntity(t *testing.T) {
	res := Extract("the payment_processor keeps failing", nil, nil)
	assert.Contains(t, res.Entities.ClassNames, "payment_processor")
}

func TestExtract_FilePathEntity(t *testing.T) {
	res := Extract("see internal/store/store.go for the bug", nil, nil)
	assert.Contains(t, res.Entities.FilePaths, "internal/store/store.go")
}

func TestExtract_RouteAndAPIPath(t *testing.T) {
	res := Extract("POST /users/{id}/activate fails, also check /api/v1/users", nil, nil)
	assert.Contains(t, res.Entities.Routes, "/users/{id}/activate")
	assert.Contains(t, res.Entities.APIPaths, "/api/v1/users")
}

func TestExtract_ErrorCodes(t *testing.T) {
	res := Extract("returns ERR_NOT_FOUND with a 404 status", nil, nil)
	assert.Contains(t, res.Entities.ErrorCodes, "ERR_NOT_FOUND")
	assert.Contains(t, res.Entities.ErrorCodes, "404")
}

func TestExtract_ChangeTypeBugfix(t *testing.T) {
	res := Extract("fix crash when the session token is expired", nil, nil)
	assert.Equal(t, types.ChangeBugfix, res.ChangeType)
}

func TestExtract_ChangeTypeUnknown(t *testing.T) {
	res := Extract("lorem ipsum dolor sit amet", nil, nil)
	assert.Equal(t, types.ChangeUnknown, res.ChangeType)
}

func TestExtract_DomainDetection(t *testing.T) {
	domains := []types.Domain{
		{Name: "payments", Keywords: []string{"payment", "stripe", "checkout", "webhook"}},
		{Name: "auth", Keywords: []string{"auth", "login", "session"}},
	}
	res := Extract("Payment webhook error with Stripe checkout", domains, semantic.NewEngine(nil))
	assert.Contains(t, res.Domains, "payments")
	assert.GreaterOrEqual(t, res.DomainWeight["payments"], 2)
}

func TestExtract_SynonymExpansionViaEngine(t *testing.T) {
	res := Extract("auth module keeps failing", nil, semantic.NewEngine(nil))
	assert.Contains(t, res.Keywords, "authenticate")
}

func TestExtract_KeyphrasesAreMultiWord(t *testing.T) {
	res := Extract("the payment webhook handler silently drops duplicate Stripe events", nil, nil)
	require.NotEmpty(t, res.Keyphrases)
	for _, p := range res.Keyphrases {
		assert.Contains(t, p, " ")
	}
}

func TestExtract_RawWordsPreserved(t *testing.T) {
	res := Extract("short ids like id and db still survive", nil, nil)
	assert.Contains(t, res.RawWords, "id")
	assert.Contains(t, res.RawWords, "db")
}

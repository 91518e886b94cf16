package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"loanguard/internal/domain"
	"loanguard/internal/logger"
	"loanguard/internal/repository"
	"loanguard/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPayer = "0x00000000000000000000000000000000000000b2"

func newTestRuleService(rules *fakeRuleRepo, sched *fakeScheduler) RuleService {
	return NewRuleService(rules, sched, settings.Defaults().Rules, testPayer, nil, 30*time.Second, logger.NewNopLogger())
}

func TestCreateRule(t *testing.T) {
	rules := newFakeRuleRepo()
	sched := &fakeScheduler{}
	svc := newTestRuleService(rules, sched)

	rule, err := svc.CreateRule(context.Background(), CreateRuleInput{
		User:         testUser,
		TriggerPrice: "2000",
		RepayAmount:  "100",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rule.RuleID)
	assert.True(t, rule.IsActive)
	assert.Equal(t, testPayer, rule.PayerAddress)
	assert.Equal(t, settings.Defaults().Rules.Protocol, rule.Protocol)
	assert.Equal(t, settings.Defaults().Rules.ChainID, rule.ChainID)
	assert.Contains(t, rules.rules, rule.RuleID)
	assert.Equal(t, 30*time.Second, sched.scheduled[rule.RuleID])
}

func TestCreateRuleValidation(t *testing.T) {
	defaults := settings.Defaults().Rules

	tests := []struct {
		name  string
		input CreateRuleInput
	}{
		{name: "missing user", input: CreateRuleInput{TriggerPrice: "2000", RepayAmount: "100"}},
		{name: "missing trigger price", input: CreateRuleInput{User: testUser, RepayAmount: "100"}},
		{name: "missing repay amount", input: CreateRuleInput{User: testUser, TriggerPrice: "2000"}},
		{name: "bad user address", input: CreateRuleInput{User: "0x123", TriggerPrice: "2000", RepayAmount: "100"}},
		{name: "non numeric trigger", input: CreateRuleInput{User: testUser, TriggerPrice: "abc", RepayAmount: "100"}},
		{name: "zero repay amount", input: CreateRuleInput{User: testUser, TriggerPrice: "2000", RepayAmount: "0"}},
		{name: "negative trigger", input: CreateRuleInput{User: testUser, TriggerPrice: "-1", RepayAmount: "100"}},
		{name: "bad payer", input: CreateRuleInput{User: testUser, TriggerPrice: "2000", RepayAmount: "100", PayerAddress: "nope"}},
		{name: "other protocol", input: CreateRuleInput{User: testUser, TriggerPrice: "2000", RepayAmount: "100", Protocol: "Compound"}},
		{name: "other chain", input: CreateRuleInput{User: testUser, TriggerPrice: "2000", RepayAmount: "100", ChainID: defaults.ChainID + 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := newFakeRuleRepo()
			sched := &fakeScheduler{}

			_, err := newTestRuleService(rules, sched).CreateRule(context.Background(), tt.input)

			require.Error(t, err)
			assert.True(t, domain.IsValidationError(err))
			assert.Empty(t, rules.rules)
			assert.Empty(t, sched.scheduled)
		})
	}
}

func TestCreateRuleRestrictsPayers(t *testing.T) {
	const otherPayer = "0x00000000000000000000000000000000000000c3"
	rules := newFakeRuleRepo()
	sched := &fakeScheduler{}
	svc := NewRuleService(rules, sched, settings.Defaults().Rules, testPayer,
		[]string{"0x00000000000000000000000000000000000000B2"}, 30*time.Second, logger.NewNopLogger())

	_, err := svc.CreateRule(context.Background(), CreateRuleInput{
		User:         testUser,
		TriggerPrice: "2000",
		RepayAmount:  "100",
		PayerAddress: otherPayer,
	})
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.Contains(t, err.Error(), "payerAddress")
	assert.Empty(t, rules.rules)
	assert.Empty(t, sched.scheduled)

	rule, err := svc.CreateRule(context.Background(), CreateRuleInput{
		User:         testUser,
		TriggerPrice: "2000",
		RepayAmount:  "100",
	})
	require.NoError(t, err)
	assert.Equal(t, testPayer, rule.PayerAddress, "the default payer is listed")
}

func TestCreateRuleMissingFieldsMessage(t *testing.T) {
	_, err := newTestRuleService(newFakeRuleRepo(), &fakeScheduler{}).CreateRule(context.Background(), CreateRuleInput{})
	require.Error(t, err)
	assert.Equal(t, "Missing required fields", err.Error())
}

func TestCreateRuleRollsBackWhenSchedulingFails(t *testing.T) {
	rules := newFakeRuleRepo()
	sched := &fakeScheduler{err: errors.New("redis down")}

	_, err := newTestRuleService(rules, sched).CreateRule(context.Background(), CreateRuleInput{
		User:         testUser,
		TriggerPrice: "2000",
		RepayAmount:  "100",
	})

	require.Error(t, err)
	assert.Empty(t, rules.rules)
	assert.Len(t, rules.deleted, 1)
}

func TestCreateRuleStoreFailure(t *testing.T) {
	rules := newFakeRuleRepo()
	rules.createErr = errors.New("dynamodb down")
	sched := &fakeScheduler{}

	_, err := newTestRuleService(rules, sched).CreateRule(context.Background(), CreateRuleInput{
		User:         testUser,
		TriggerPrice: "2000",
		RepayAmount:  "100",
	})

	require.Error(t, err)
	assert.Empty(t, sched.scheduled)
}

func TestGetRule(t *testing.T) {
	svc := newTestRuleService(newFakeRuleRepo(testRule("r1")), &fakeScheduler{})

	rule, err := svc.GetRule(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", rule.RuleID)

	_, err = svc.GetRule(context.Background(), "missing")
	assert.True(t, repository.IsNotFoundError(err))

	_, err = svc.GetRule(context.Background(), " ")
	assert.True(t, domain.IsValidationError(err))
}

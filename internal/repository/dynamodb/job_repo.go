package dynamodb

import (
	"context"
	"fmt"
	"strconv"

	"loanguard/internal/domain"
	"loanguard/internal/logger"
	"loanguard/internal/repository"
	iface "loanguard/internal/repository/iface"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type jobRepository struct {
	client    Client
	tableName string
	logger    logger.Logger
}

// NewJobRepository creates a new DynamoDB job repository
func NewJobRepository(client Client, tableName string, log logger.Logger) iface.JobRepository {
	return &jobRepository{
		client:    client,
		tableName: tableName,
		logger:    log.With(logger.String("component", "job_repository")),
	}
}

func (r *jobRepository) Create(ctx context.Context, job *domain.ScheduledJob) error {
	r.logger.Debug("creating scheduled job",
		logger.String("job_id", job.JobID))

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		r.logger.Error("failed to marshal job", logger.Error(err))
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})

	if err != nil {
		r.logger.Error("failed to create job", logger.Error(err))
		return fmt.Errorf("failed to create job: %w", err)
	}

	r.logger.Info("scheduled job created",
		logger.String("job_id", job.JobID),
		logger.Int64("interval_seconds", job.IntervalSeconds))

	return nil
}

func (r *jobRepository) GetByID(ctx context.Context, jobID string) (*domain.ScheduledJob, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"job_id": &types.AttributeValueMemberS{Value: jobID},
		},
	})

	if err != nil {
		r.logger.Error("failed to get job", logger.Error(err))
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, repository.ErrNotFound)
	}

	var job domain.ScheduledJob
	err = attributevalue.UnmarshalMap(result.Item, &job)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (r *jobRepository) ListActive(ctx context.Context) ([]*domain.ScheduledJob, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("#status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(domain.JobStatusActive)},
		},
	}

	jobs := make([]*domain.ScheduledJob, 0)
	for {
		result, err := r.client.Scan(ctx, input)
		if err != nil {
			r.logger.Error("failed to scan jobs", logger.Error(err))
			return nil, fmt.Errorf("failed to scan jobs: %w", err)
		}

		for _, item := range result.Items {
			var job domain.ScheduledJob
			if err := attributevalue.UnmarshalMap(item, &job); err != nil {
				r.logger.Warn("failed to unmarshal job", logger.Error(err))
				continue
			}
			jobs = append(jobs, &job)
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	r.logger.Debug("active jobs retrieved", logger.Int("count", len(jobs)))
	return jobs, nil
}

func (r *jobRepository) RecordDispatch(ctx context.Context, jobID string, expectedNextRunAt, dispatchedAt, nextRunAt int64) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"job_id": &types.AttributeValueMemberS{Value: jobID},
		},
		UpdateExpression:    aws.String("SET next_run_at = :next, last_dispatched_at = :dispatched, updated_at = :dispatched ADD dispatch_count :one"),
		ConditionExpression: aws.String("attribute_exists(job_id) AND next_run_at = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":next":       &types.AttributeValueMemberN{Value: strconv.FormatInt(nextRunAt, 10)},
			":dispatched": &types.AttributeValueMemberN{Value: strconv.FormatInt(dispatchedAt, 10)},
			":expected":   &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedNextRunAt, 10)},
			":one":        &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			r.logger.Warn("dispatch already recorded by another process",
				logger.String("job_id", jobID),
				logger.Int64("expected_next_run_at", expectedNextRunAt))
			return repository.ErrOptimisticLockFailed
		}
		return fmt.Errorf("failed to record dispatch: %w", err)
	}
	return nil
}

func (r *jobRepository) Delete(ctx context.Context, jobID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"job_id": &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		r.logger.Error("failed to delete job", logger.String("job_id", jobID), logger.Error(err))
		return fmt.Errorf("failed to delete job: %w", err)
	}

	r.logger.Info("scheduled job deleted", logger.String("job_id", jobID))
	return nil
}

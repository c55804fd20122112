package database

import (
	"context"
	"fmt"

	"sub2play/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
)

// NewDynamoClient builds the DynamoDB client for the production store
// backend. DYNAMO_LOCAL=true points it at a local endpoint with dummy
// credentials for development.
func NewDynamoClient(cfg *config.Config, logger zerolog.Logger) (*dynamodb.Client, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error

	if cfg.DynamoLocal {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.DynamoRegion),
			awsconfig.WithBaseEndpoint(cfg.DynamoBaseURL),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
			),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.DynamoRegion),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info().
		Str("table", cfg.DynamoTable).
		Str("region", cfg.DynamoRegion).
		Bool("local", cfg.DynamoLocal).
		Msg("dynamodb client configured")

	return dynamodb.NewFromConfig(awsCfg), nil
}

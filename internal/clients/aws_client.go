package clients

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
)

var (
	awsCfg   aws.Config
	awsOnce  sync.Once
	endpoint string
)

// GetAWSConfig loads the shared AWS config once. AWS_ENDPOINT points clients
// at a local DynamoDB and switches to static dev credentials.
func GetAWSConfig() aws.Config {
	awsOnce.Do(func() {
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-west-1"
		}

		slog.Info("[AWSClient] Initializing AWS Config...",
			slog.String("region", region))

		opts := []func(*config.LoadOptions) error{
			config.WithRegion(region),
		}

		awsEndpoint := os.Getenv("AWS_ENDPOINT")
		if awsEndpoint != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("dev", "dev", "")))
		}

		cfg, err := config.LoadDefaultConfig(context.Background(), opts...)
		if err != nil {
			slog.Error("[AWSClient] Failed to load AWS config")
			panic(err)
		}

		awsCfg = cfg
		endpoint = awsEndpoint
		slog.Info("[AWSClient] AWS Config Initialized")
	})

	return awsCfg
}

func GetDynamoDBClient() *dynamodb.Client {
	return dynamodb.NewFromConfig(GetAWSConfig(), func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func GetDynamoDBStreamClient() *dynamodbstreams.Client {
	return dynamodbstreams.NewFromConfig(GetAWSConfig(), func(o *dynamodbstreams.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

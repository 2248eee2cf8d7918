package stores

import (
	"os"

	"github.com/sirupsen/logrus"

	"cardwall/core"
	"cardwall/stores/aws"
	"cardwall/stores/filesystem"
	"cardwall/stores/memory"
	"cardwall/stores/redis"
	"cardwall/stores/sqlite"
)

// GetStore selects the persistence backend from STORAGE_TYPE. With no
// configuration, board state lives in memory and dies with the
// process.
func GetStore() core.Store {
	storageType := os.Getenv("STORAGE_TYPE")
	var store core.Store

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "redis":
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			redisURL = "redis://localhost:6379"
		}
		storageField["redisURL"] = redisURL
		redisStore, err := redis.NewStore(redisURL)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to redis")
		}
		store = redisStore
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "cardwall.db"
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data"
		}
		storageField["basePath"] = basePath
		store = filesystem.NewStore(basePath)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = bucketName
		store = aws.NewStore(bucketName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}

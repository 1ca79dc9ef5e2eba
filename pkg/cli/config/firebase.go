package config

import (
	"context"

	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/types"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/infra/fetcher"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/infra/firestore"
)

// Firebase holds configuration of the remote content store
type Firebase struct {
	ProjectID       string
	DatabaseID      string
	Collection      string
	CredentialsFile string
}

// Flags returns CLI flags for Firebase configuration
func (c *Firebase) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firebase-project-id",
			Usage:       "Firebase project ID; remote sync is disabled when empty",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars(types.EnvPrefix + "FIREBASE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Destination: &c.DatabaseID,
			Sources:     cli.EnvVars(types.EnvPrefix + "FIRESTORE_DATABASE_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-collection",
			Usage:       "Firestore collection of content documents",
			Value:       firestore.DefaultCollection,
			Destination: &c.Collection,
			Sources:     cli.EnvVars(types.EnvPrefix + "FIRESTORE_COLLECTION"),
		},
		&cli.StringFlag{
			Name:        "firebase-credentials",
			Usage:       "Service account JSON file (default: application default credentials)",
			Destination: &c.CredentialsFile,
			Sources:     cli.EnvVars(types.EnvPrefix + "FIREBASE_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS"),
		},
	}
}

// ApplyFile fills values from the [firebase] table for flags that were not set
func (c *Firebase) ApplyFile(f *File, isSet IsSet) {
	if f == nil {
		return
	}
	setString(&c.ProjectID, f.Firebase.ProjectID, "firebase-project-id", isSet)
	setString(&c.DatabaseID, f.Firebase.DatabaseID, "firestore-database-id", isSet)
	setString(&c.Collection, f.Firebase.Collection, "firestore-collection", isSet)
	setString(&c.CredentialsFile, f.Firebase.CredentialsFile, "firebase-credentials", isSet)
}

// Enabled reports whether a project is configured
func (c *Firebase) Enabled() bool {
	return c.ProjectID != ""
}

func (c *Firebase) clientOptions() []option.ClientOption {
	if c.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(c.CredentialsFile)}
}

// NewRecordStore connects to the Firestore collection of content documents
func (c *Firebase) NewRecordStore(ctx context.Context) (*firestore.Client, error) {
	return firestore.New(ctx, c.ProjectID,
		firestore.WithDatabaseID(c.DatabaseID),
		firestore.WithCollection(c.Collection),
		firestore.WithClientOptions(c.clientOptions()...),
	)
}

// NewGCSFetcher creates the gs:// media fetcher using the same credentials
func (c *Firebase) NewGCSFetcher(ctx context.Context) (*fetcher.GCS, error) {
	return fetcher.NewGCS(ctx, c.clientOptions()...)
}

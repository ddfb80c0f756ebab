package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/weeb-foss/cdn/internal/auth"
	"github.com/weeb-foss/cdn/internal/catalog"
	"github.com/weeb-foss/cdn/internal/config"
	"github.com/weeb-foss/cdn/internal/database"
	"github.com/weeb-foss/cdn/internal/policy"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "cdn-admin",
		Short: "Administration CLI for the CDN authorization core",
	}

	var dbConfig database.Config
	var configFile string

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbConfig.ConnectionString, "db-connection", "", "database connection string")
	rootCmd.PersistentFlags().StringVar(&dbConfig.Driver, "db-driver", "postgres", "database driver")

	var createUserCmd = &cobra.Command{
		Use:   "create-user",
		Short: "Register a new user",
		Run: func(cmd *cobra.Command, args []string) {
			db := setupDatabase(configFile, dbConfig)
			defer db.Close()

			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			creds := auth.NewCredentialStore(db)
			user, err := creds.Register(context.Background(), username, email, password)
			if err != nil {
				log.Fatalf("Failed to create user: %v", err)
			}

			fmt.Printf("User created successfully:\n")
			fmt.Printf("ID: %d\n", user.ID)
			fmt.Printf("Username: %s\n", user.Username)
			fmt.Printf("Email: %s\n", user.Email)
			if user.PasswordHash == nil {
				fmt.Println("No password set (API key only)")
			}
		},
	}

	createUserCmd.Flags().String("username", "", "Username")
	createUserCmd.Flags().String("email", "", "User email")
	createUserCmd.Flags().String("password", "", "User password (empty creates an API-key-only account)")
	_ = createUserCmd.MarkFlagRequired("username")

	var listUsersCmd = &cobra.Command{
		Use:   "list-users",
		Short: "List all users",
		Run: func(cmd *cobra.Command, args []string) {
			db := setupDatabase(configFile, dbConfig)
			defer db.Close()

			users, err := db.ListUsers(context.Background())
			if err != nil {
				log.Fatalf("Failed to list users: %v", err)
			}

			fmt.Printf("%-8s %-20s %-30s %-10s %-20s\n", "ID", "Username", "Email", "Password", "Created")
			for _, user := range users {
				hasPassword := "no"
				if user.PasswordHash != nil {
					hasPassword = "yes"
				}
				fmt.Printf("%-8d %-20s %-30s %-10s %-20s\n",
					user.ID,
					user.Username,
					user.Email,
					hasPassword,
					user.CreatedAt.Format("2006-01-02 15:04:05"),
				)
			}
		},
	}

	var issueKeyCmd = &cobra.Command{
		Use:   "issue-key",
		Short: "Issue a new API key for a user",
		Run: func(cmd *cobra.Command, args []string) {
			db := setupDatabase(configFile, dbConfig)
			defer db.Close()

			userID, _ := cmd.Flags().GetInt64("user-id")

			keys := auth.NewKeyManager(db)
			key, secret, err := keys.Issue(context.Background(), userID)
			if err != nil {
				log.Fatalf("Failed to issue key: %v", err)
			}

			fmt.Printf("API key issued (ID %d).\n", key.ID)
			fmt.Printf("Secret (shown once, store it now): %s\n", secret)
		},
	}

	issueKeyCmd.Flags().Int64("user-id", 0, "Owning user ID")
	_ = issueKeyCmd.MarkFlagRequired("user-id")

	var revokeKeyCmd = &cobra.Command{
		Use:   "revoke-key",
		Short: "Revoke an API key",
		Run: func(cmd *cobra.Command, args []string) {
			db := setupDatabase(configFile, dbConfig)
			defer db.Close()

			keyID, _ := cmd.Flags().GetInt64("key-id")
			userID, _ := cmd.Flags().GetInt64("user-id")

			keys := auth.NewKeyManager(db)
			if err := keys.Revoke(context.Background(), keyID, userID); err != nil {
				log.Fatalf("Failed to revoke key: %v", err)
			}

			fmt.Printf("API key %d revoked\n", keyID)
		},
	}

	revokeKeyCmd.Flags().Int64("key-id", 0, "Key ID")
	revokeKeyCmd.Flags().Int64("user-id", 0, "Owning user ID")
	_ = revokeKeyCmd.MarkFlagRequired("key-id")
	_ = revokeKeyCmd.MarkFlagRequired("user-id")

	var createBucketCmd = &cobra.Command{
		Use:   "create-bucket",
		Short: "Create a bucket owned by a user",
		Run: func(cmd *cobra.Command, args []string) {
			db := setupDatabase(configFile, dbConfig)
			defer db.Close()

			name, _ := cmd.Flags().GetString("name")
			ownerID, _ := cmd.Flags().GetInt64("owner-id")

			registry := catalog.NewRegistry(db)
			bucket, err := registry.Create(context.Background(), name, ownerID)
			if err != nil {
				log.Fatalf("Failed to create bucket: %v", err)
			}

			fmt.Printf("Bucket %q created (ID %d, owner %d)\n", bucket.Name, bucket.ID, bucket.OwnerID)
		},
	}

	createBucketCmd.Flags().String("name", "", "Bucket name")
	createBucketCmd.Flags().Int64("owner-id", 0, "Owning user ID")
	_ = createBucketCmd.MarkFlagRequired("name")
	_ = createBucketCmd.MarkFlagRequired("owner-id")

	var grantCmd = &cobra.Command{
		Use:   "grant",
		Short: "Grant a bucket permission to a user",
		Run: func(cmd *cobra.Command, args []string) {
			db := setupDatabase(configFile, dbConfig)
			defer db.Close()

			bucketID, _ := cmd.Flags().GetInt64("bucket-id")
			userID, _ := cmd.Flags().GetInt64("user-id")
			permission, _ := cmd.Flags().GetString("permission")

			perm := database.Permission(permission)
			if !perm.Valid() {
				log.Fatalf("Invalid permission %q (READ, WRITE or ADMIN)", permission)
			}

			engine := policy.NewEngine(db)
			grant, err := engine.Grant(context.Background(), bucketID, userID, perm)
			if err != nil {
				log.Fatalf("Failed to grant permission: %v", err)
			}

			fmt.Printf("Granted %s on bucket %d to user %d\n", grant.Permission, bucketID, userID)
		},
	}

	grantCmd.Flags().Int64("bucket-id", 0, "Bucket ID")
	grantCmd.Flags().Int64("user-id", 0, "User ID")
	grantCmd.Flags().String("permission", "READ", "Permission level (READ, WRITE, ADMIN)")
	_ = grantCmd.MarkFlagRequired("bucket-id")
	_ = grantCmd.MarkFlagRequired("user-id")

	var revokeCmd = &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a user's bucket permissions",
		Run: func(cmd *cobra.Command, args []string) {
			db := setupDatabase(configFile, dbConfig)
			defer db.Close()

			bucketID, _ := cmd.Flags().GetInt64("bucket-id")
			userID, _ := cmd.Flags().GetInt64("user-id")

			engine := policy.NewEngine(db)
			if err := engine.Revoke(context.Background(), bucketID, userID); err != nil {
				log.Fatalf("Failed to revoke permissions: %v", err)
			}

			fmt.Printf("Revoked permissions on bucket %d from user %d\n", bucketID, userID)
		},
	}

	revokeCmd.Flags().Int64("bucket-id", 0, "Bucket ID")
	revokeCmd.Flags().Int64("user-id", 0, "User ID")
	_ = revokeCmd.MarkFlagRequired("bucket-id")
	_ = revokeCmd.MarkFlagRequired("user-id")

	rootCmd.AddCommand(createUserCmd, listUsersCmd, issueKeyCmd, revokeKeyCmd, createBucketCmd, grantCmd, revokeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setupDatabase(configFile string, dbConfig database.Config) *database.DB {
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err == nil {
			dbConfig.ConnectionString = cfg.Database.ConnectionString
			dbConfig.Driver = cfg.Database.Driver
			dbConfig.MaxOpenConns = cfg.Database.MaxOpenConns
			dbConfig.MaxIdleConns = cfg.Database.MaxIdleConns
			dbConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
		}
	}

	if dbConfig.ConnectionString == "" {
		log.Fatal("Database connection string is required. Use --db-connection or configure in config file")
	}

	db, err := database.NewConnection(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	return db
}

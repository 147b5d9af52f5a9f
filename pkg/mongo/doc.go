// Package mongo connects to MongoDB with the official v2 driver.
//
// It is used by notifyd when tenant rules are managed in a MongoDB collection
// (see package mongorules). Configuration comes from the environment:
//
//	var cfg mongo.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
// Connection attempts are retried RetryAttempts times, RetryInterval apart,
// and stop early when ctx is cancelled. Failures wrap ErrFailedToConnectToMongo.
package mongo

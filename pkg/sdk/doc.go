// Package dokindex provides a Go client for the dokindex document
// ingestion and retrieval API.
//
//	client, _ := dokindex.New("https://dokindex.internal",
//	    dokindex.WithAPIKey(os.Getenv("DOKINDEX_API_KEY")),
//	)
//
//	job, _ := client.Ingest(ctx, "doc-123")
//	job, _ = client.WaitForJob(ctx, job.ID)
//
//	res, _ := client.Retrieve(ctx, dokindex.RetrieveRequest{
//	    OrganizationID: "org-1",
//	    UserID:         "user-7",
//	    Query:          "what is our refund policy?",
//	})
//	fmt.Println(res.ContextBlock)
package dokindex

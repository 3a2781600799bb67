// Package clientcli provides a client library for the asset gateway HTTP API.
//
// The gateway never touches asset bytes. It hands out presigned URLs, and
// the client moves content straight to and from the object store. Upload
// wraps the three calls a full upload takes:
//
//  1. POST /asset to get an id and upload URL
//  2. PUT the file to the upload URL
//  3. PUT /asset/{id} with {"Status": "uploaded"}
//
// # Basic Usage
//
//	client, err := clientcli.New(&clientcli.Config{Endpoint: "http://localhost:8080"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := client.Upload(ctx, clientcli.UploadOptions{LocalPath: "./photo.jpg"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	_, _, err = client.Download(ctx, clientcli.DownloadOptions{
//		ID:        result.ID,
//		LocalPath: "./copy.jpg",
//		Timeout:   300,
//	})
//
// Downloads of assets that were never marked uploaded fail with an error
// matching ErrNotUploaded.
//
// # Profile Configuration
//
// Profiles store gateway endpoints in ~/.assetgate/config.yaml:
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := configFile.GetProfile("production")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
//
// # Output Formatting
//
// Use formatters for human-readable or JSON output:
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, results)
package clientcli

// Package errlog records failed export jobs in an append-only text file.
//
// Each entry reads:
//
//	Request {job id} experienced a problem at {end time} with the following message:
//	{message}
//
// The file is rotated by size so unattended runs never fill the disk.
package errlog
